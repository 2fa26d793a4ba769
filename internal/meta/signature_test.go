package meta

import "testing"

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"page"}`)
	good := Sign("s3cret", body)

	tests := []struct {
		name   string
		secret string
		body   []byte
		header string
		want   bool
	}{
		{"valid", "s3cret", body, good, true},
		{"wrong secret", "other", body, good, false},
		{"tampered body", "s3cret", []byte(`{"object":"user"}`), good, false},
		{"missing prefix", "s3cret", body, good[len("sha256="):], false},
		{"not hex", "s3cret", body, "sha256=zz", false},
		{"empty header", "s3cret", body, "", false},
		{"no secret", "", body, good, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature(tt.secret, tt.body, tt.header); got != tt.want {
				t.Errorf("VerifySignature = %v, want %v", got, tt.want)
			}
		})
	}
}
