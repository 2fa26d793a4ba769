package meta

import (
	"strings"
	"testing"
)

func fd(pairs ...string) []FieldData {
	var out []FieldData
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, FieldData{Name: pairs[i], Values: []string{pairs[i+1]}})
	}
	return out
}

func TestMapFieldsPriority(t *testing.T) {
	tests := []struct {
		name   string
		fields []FieldData
		want   MappedLead
	}{
		{
			name:   "phone beats telefone",
			fields: fd("telefone", "+55 11 2222-2222", "phone", "+55 11 1111-1111"),
			want:   MappedLead{Phone: "+55 11 1111-1111"},
		},
		{
			name:   "phone_number beats everything",
			fields: fd("celular", "3", "whatsapp", "2", "phone_number", "1"),
			want:   MappedLead{Phone: "1"},
		},
		{
			name:   "portuguese fallbacks",
			fields: fd("nome_completo", "Maria Souza", "e-mail", "maria@example.com", "celular", "5511988887777"),
			want:   MappedLead{Name: "Maria Souza", Email: "maria@example.com", Phone: "5511988887777"},
		},
		{
			name:   "full_name beats first_name",
			fields: fd("first_name", "Ana", "full_name", "Ana Lima"),
			want:   MappedLead{Name: "Ana Lima"},
		},
		{
			name:   "empty value falls through",
			fields: fd("email", "  ", "email_address", "x@example.com"),
			want:   MappedLead{Email: "x@example.com"},
		},
		{
			name:   "field names are case-insensitive",
			fields: fd("EMAIL", "y@example.com"),
			want:   MappedLead{Email: "y@example.com"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapFields(tt.fields)
			if got.Name != tt.want.Name || got.Email != tt.want.Email || got.Phone != tt.want.Phone {
				t.Errorf("MapFields = {%q %q %q}, want {%q %q %q}",
					got.Name, got.Email, got.Phone, tt.want.Name, tt.want.Email, tt.want.Phone)
			}
			for _, f := range tt.fields {
				if v := f.Values[0]; strings.TrimSpace(v) != "" && got.Raw[strings.ToLower(f.Name)] != v {
					t.Errorf("raw[%q] = %q, want %q", f.Name, got.Raw[strings.ToLower(f.Name)], v)
				}
			}
		})
	}
}

func TestFieldValuesFirstNonEmpty(t *testing.T) {
	got := FieldValues([]FieldData{{Name: "phone", Values: []string{"", "123", "456"}}, {Name: "", Values: []string{"x"}}})
	if len(got) != 1 || got["phone"] != "123" {
		t.Errorf("FieldValues = %v", got)
	}
}

func TestFieldValuesRepeatedName(t *testing.T) {
	tests := []struct {
		name   string
		fields []FieldData
		want   string
	}{
		{"earliest wins", fd("phone", "+55 11 1111-1111", "PHONE", "+55 11 2222-2222"), "+55 11 1111-1111"},
		{"empty earlier entry falls through", fd("phone", " ", "phone", "+55 11 2222-2222"), "+55 11 2222-2222"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FieldValues(tt.fields)["phone"]; got != tt.want {
				t.Errorf("phone = %q, want %q", got, tt.want)
			}
			if got := MapFields(tt.fields).Phone; got != tt.want {
				t.Errorf("MapFields phone = %q, want %q", got, tt.want)
			}
		})
	}
}
