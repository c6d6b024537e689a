package redact

import (
	"strings"
	"testing"
)

func TestRedactDisabled(t *testing.T) {
	SetEnabled(false)
	in := "email a@b.com and phone +1 (555) 123-4567"
	if got := Text(in); got != in {
		t.Fatalf("expected no redaction, got %q", got)
	}
	if got := Address("+15551234567"); got != "+15551234567" {
		t.Fatalf("expected address untouched, got %q", got)
	}
}

func TestRedactEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "email a@b.com and phone +1 (555) 123-4567"
	got := Text(in)
	if got == in {
		t.Fatalf("expected redaction")
	}
	if want := "[REDACTED_EMAIL]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output", want)
	}
	if want := "[REDACTED_PHONE]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output, got %q", want, got)
	}
}

func TestAddressKeepsSuffix(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	if got := Address("+15551234567"); got != "********4567" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := Address("abc"); got != "***" {
		t.Fatalf("unexpected short mask %q", got)
	}
}
