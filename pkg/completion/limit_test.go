package completion

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestLimiterKeepsDecimalPrices(t *testing.T) {
	l := NewLimiter(420, 1)
	got, cut := l.Apply("Add-ons start at $1.50 per item. Anything else?")
	if got != "Add-ons start at $1.50 per item." || !cut {
		t.Fatalf("unexpected %q cut=%v", got, cut)
	}
}

func TestLimiterCharsAtWordBoundary(t *testing.T) {
	l := NewLimiter(20, 5)
	got, cut := l.Apply("Claro, con gusto le ayudo a reservar su limpieza")
	if !cut || utf8.RuneCountInString(got) > 20 || strings.HasSuffix(got, " ") {
		t.Fatalf("unexpected %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("invalid utf8 after cut")
	}
}

func TestLimiterNoChange(t *testing.T) {
	got, cut := NewLimiter(0, 0).Apply("  Short reply.  ")
	if got != "Short reply." || cut {
		t.Fatalf("unexpected %q cut=%v", got, cut)
	}
}

func TestFallbackByPath(t *testing.T) {
	if Fallback(PathSMS) != smsFallback || Fallback(PathVoice) != voiceFallback {
		t.Fatalf("unexpected fallbacks")
	}
}
