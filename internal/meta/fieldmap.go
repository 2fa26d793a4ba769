package meta

import "strings"

// Candidate source field names per CRM attribute, in priority order.
var (
	NameFields  = []string{"full_name", "name", "first_name", "nome", "nome_completo"}
	EmailFields = []string{"email", "e-mail", "email_address"}
	PhoneFields = []string{"phone_number", "phone", "whatsapp", "telefone", "celular"}
)

// MappedLead holds the CRM attributes extracted from a lead's field data.
type MappedLead struct {
	Name  string
	Email string
	Phone string
	Raw   map[string]string // every field, first value, keyed by lower-cased name
}

// FieldValues flattens field data to name -> first non-empty value. When a form
// repeats a field name the earliest non-empty entry is kept.
func FieldValues(fields []FieldData) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		key := strings.ToLower(strings.TrimSpace(f.Name))
		if key == "" || out[key] != "" {
			continue
		}
		for _, v := range f.Values {
			if v = strings.TrimSpace(v); v != "" {
				out[key] = v
				break
			}
		}
	}
	return out
}

// FirstMatch returns the value of the first candidate present and non-empty.
func FirstMatch(values map[string]string, candidates []string) string {
	for _, c := range candidates {
		if v := values[c]; v != "" {
			return v
		}
	}
	return ""
}

// MapFields applies the fixed candidate lists. A lead with no name field gets
// "Lead <id>" from ImportLead, not here.
func MapFields(fields []FieldData) MappedLead {
	values := FieldValues(fields)
	return MappedLead{
		Name:  FirstMatch(values, NameFields),
		Email: FirstMatch(values, EmailFields),
		Phone: FirstMatch(values, PhoneFields),
		Raw:   values,
	}
}
