package intent

import (
	"strings"
	"testing"
)

func TestClassifyTable(t *testing.T) {
	cases := []struct {
		text string
		want Intent
	}{
		{"I'd like to book a cleaning for Friday", Appointment},
		{"Can I RESCHEDULE?", Appointment},
		{"how much for a 3 bedroom?", Sales},
		{"What are your prices", Sales},
		{"the cleaner was late and missed the kitchen", Support},
		{"I want a refund", Support},
		{"hello there", General},
		{"", General},
	}
	for _, tc := range cases {
		if got := Classify(tc.text); got != tc.want {
			t.Fatalf("Classify(%q)=%s want %s", tc.text, got, tc.want)
		}
	}
}

func TestClassifyPriority(t *testing.T) {
	if got := Classify("what is the price to book"); got != Appointment {
		t.Fatalf("expected appointment to win over sales, got %s", got)
	}
	if got := Classify("price of fixing the problem"); got != Sales {
		t.Fatalf("expected sales to win over support, got %s", got)
	}
}

func TestClassifyWholeWord(t *testing.T) {
	for _, text := range []string{"facebook page", "notebooks", "pricey", "lately"} {
		if got := Classify(text); got != General {
			t.Fatalf("Classify(%q)=%s, substrings must not match", text, got)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	text := "Is there availability next week?"
	first := Classify(text)
	for i := 0; i < 10; i++ {
		if Classify(text) != first {
			t.Fatalf("classification changed between calls")
		}
	}
}

func TestBuildPromptContainsInputs(t *testing.T) {
	sender := "+15551234567"
	text := "  How much is a deep clean?  "
	for in := range clauses {
		p := BuildPrompt(in, sender, text)
		if strings.Count(p, sender) != 1 {
			t.Fatalf("%s: expected sender exactly once", in)
		}
		if !strings.Contains(p, text) {
			t.Fatalf("%s: expected text verbatim", in)
		}
		if !strings.Contains(p, clauses[in]) {
			t.Fatalf("%s: expected intent clause", in)
		}
	}
}

func TestBuildPromptUnknownIntentUsesGeneral(t *testing.T) {
	p := BuildPrompt(Intent("billing"), "+1", "hi")
	if !strings.Contains(p, clauses[General]) {
		t.Fatalf("expected general clause for unknown intent")
	}
	if Intent("billing").Valid() || !Sales.Valid() {
		t.Fatalf("unexpected Valid results")
	}
}
