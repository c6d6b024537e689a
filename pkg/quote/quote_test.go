package quote

import (
	"encoding/json"
	"testing"
)

func TestExtractMarkers(t *testing.T) {
	e := NewExtractor(nil)
	cases := []struct {
		text string
		want *Quote
	}{
		{"Our deep clean is $149 for most homes.", &Quote{TotalAmount: 149, ServiceType: Deep}},
		{"A DEEP CLEAN covers baseboards.", &Quote{TotalAmount: 149, ServiceType: Deep}},
		{"Standard cleaning is just $129.", &Quote{TotalAmount: 129, ServiceType: Standard}},
		{"Our standard clean takes two hours.", &Quote{TotalAmount: 129, ServiceType: Standard}},
		{"We can come by on Tuesday.", nil},
		{"", nil},
	}
	for _, tc := range cases {
		got := e.Extract(tc.text, "")
		if tc.want == nil {
			if got != nil {
				t.Fatalf("Extract(%q)=%+v want nil", tc.text, got)
			}
			continue
		}
		if got == nil || *got != *tc.want {
			t.Fatalf("Extract(%q)=%+v want %+v", tc.text, got, tc.want)
		}
	}
}

func TestExtractDeepRulesWin(t *testing.T) {
	got := NewExtractor(nil).Extract("Standard is $129, deep clean is $149.", DefaultRegion)
	if got == nil || got.ServiceType != Deep || got.TotalAmount != 149 {
		t.Fatalf("expected deep quote, got %+v", got)
	}
}

func TestExtractRegionalTable(t *testing.T) {
	prices := DefaultPrices()
	prices["metro"] = map[ServiceType]int{Standard: 159, Deep: 189}
	e := NewExtractor(prices)

	if got := e.Extract("a deep clean would be perfect", "metro"); got == nil || got.TotalAmount != 189 {
		t.Fatalf("expected metro deep price, got %+v", got)
	}
	if got := e.Extract("that is $149", "metro"); got != nil {
		t.Fatalf("expected nil for amount outside the metro table, got %+v", got)
	}
	if got := e.Extract("that is $149", "nowhere"); got == nil || got.TotalAmount != 149 {
		t.Fatalf("expected unknown region to use default, got %+v", got)
	}
	if got := e.Extract("a deep clean would be perfect", " Metro "); got == nil || got.TotalAmount != 189 {
		t.Fatalf("region lookup should ignore case and spacing, got %+v", got)
	}
}

func TestExtractedAmountsMatchTable(t *testing.T) {
	prices := DefaultPrices()
	e := NewExtractor(prices)
	for _, text := range []string{"$149", "deep clean", "$129", "standard clean"} {
		q := e.Extract(text, DefaultRegion)
		if q == nil {
			t.Fatalf("expected quote for %q", text)
		}
		if want, _ := prices.Lookup(DefaultRegion, q.ServiceType); q.TotalAmount != want {
			t.Fatalf("amount %d not in table for %s", q.TotalAmount, q.ServiceType)
		}
	}
}

func TestQuoteJSON(t *testing.T) {
	raw, err := json.Marshal(Quote{TotalAmount: 149, ServiceType: Deep})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"totalAmount":149,"serviceType":"deep"}` {
		t.Fatalf("unexpected json %s", raw)
	}
}
