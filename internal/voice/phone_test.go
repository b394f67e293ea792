package voice

import (
	"errors"
	"testing"
)

func TestNormalizeNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+15551234567", "+15551234567"},
		{"15551234567", "+15551234567"},
		{"+1 (555) 123-4567", "+15551234567"},
		{" +31 6 2008 6783 ", "+31620086783"},
		{"555.123.4567", "+5551234567"},
	}
	for _, c := range cases {
		got, err := NormalizeNumber(c.in)
		if err != nil {
			t.Fatalf("%q: unexpected err: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("%q: got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeNumber_Rejects(t *testing.T) {
	for _, in := range []string{"", "12345", "+1555", "call-me-maybe", "555123456x"} {
		if _, err := NormalizeNumber(in); !errors.Is(err, ErrInvalidNumber) {
			t.Fatalf("%q: expected ErrInvalidNumber, got %v", in, err)
		}
	}
}
