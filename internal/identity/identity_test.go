package identity

import "testing"

func TestKey(t *testing.T) {
	cases := []struct {
		ident Identity
		want  string
	}{
		{User(42), "user:42"},
		{Anonymous("abc-123"), "anon:abc-123"},
		{Admin("root"), "admin:root"},
	}
	for _, c := range cases {
		if got := c.ident.Key(); got != c.want {
			t.Fatalf("expected %q, got %q", c.want, got)
		}
	}
}

func TestNewSessionID_Unique(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == "" || a == b {
		t.Fatalf("session ids must be non-empty and unique: %q %q", a, b)
	}
}
