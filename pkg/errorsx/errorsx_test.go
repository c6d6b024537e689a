package errorsx

import (
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonLLMGenerate)
	if Reason(err) != ReasonLLMGenerate {
		t.Fatalf("expected reason %s, got %s", ReasonLLMGenerate, Reason(err))
	}
	if !HasReason(err, ReasonLLMGenerate) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonTTSRateLimit)
	second := Wrap(first, ReasonLLMGenerate)
	if Reason(second) != ReasonTTSRateLimit {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestInvalidSurvivesFmtWrap(t *testing.T) {
	err := fmt.Errorf("sms webhook: %w", Invalid("missing %s", "From"))
	if !IsValidation(err) {
		t.Fatalf("expected validation reason, got %s", Reason(err))
	}
	if err.Error() != "sms webhook: missing From" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if IsValidation(Wrap(assertErr{}, ReasonSMSSend)) {
		t.Fatalf("send failure must not be a validation error")
	}
}

func TestReasonNil(t *testing.T) {
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown for nil")
	}
	if Wrap(nil, ReasonSMSSend) != nil {
		t.Fatalf("expected nil wrap of nil")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
