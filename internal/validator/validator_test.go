package validator

import (
	"testing"
)

type signon struct {
	Username      string `json:"username" validate:"required,max=150"`
	Password      string `json:"password" validate:"required,min=8"`
	PasswordCheck string `json:"passwordCheck" validate:"required,eqfield=Password"`
}

func TestValidate(t *testing.T) {
	v := New()
	tests := []struct {
		name    string
		in      signon
		wantMsg string
	}{
		{"ok", signon{"alice", "password1", "password1"}, ""},
		{"missing username", signon{"", "password1", "password1"}, "username is required"},
		{"short password", signon{"alice", "short", "short"}, "password must be at least 8 characters"},
		{"mismatch", signon{"alice", "password1", "password2"}, "passwordCheck must match Password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if got := Message(err); got != tt.wantMsg {
				t.Errorf("Message = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestMessage_NonValidationError(t *testing.T) {
	if got := Message(nil); got != "invalid request body" {
		t.Errorf("Message(nil) = %q", got)
	}
}
