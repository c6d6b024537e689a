// Package intent classifies inbound text messages and assembles the
// completion prompt for the SMS path.
package intent

import "regexp"

// Intent is the coarse category of an inbound message.
type Intent string

const (
	Appointment Intent = "appointment"
	Sales       Intent = "sales"
	Support     Intent = "support"
	General     Intent = "general"
)

// Rule maps a case-insensitive whole-word pattern to an intent.
type Rule struct {
	Intent  Intent
	Pattern *regexp.Regexp
}

// Rules is evaluated in order; the first matching rule wins.
var Rules = []Rule{
	{Intent: Appointment, Pattern: wordPattern(`book|booking|booked|schedule|scheduling|appointment|appointments|reschedule|availability|available`)},
	{Intent: Sales, Pattern: wordPattern(`price|prices|pricing|cost|costs|quote|quotes|estimate|how much|rate|rates`)},
	{Intent: Support, Pattern: wordPattern(`problem|issue|complaint|complain|refund|damage|damaged|broken|missed|late|unhappy`)},
}

func wordPattern(alternatives string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + alternatives + `)\b`)
}

// Classify returns the intent of text. It never fails; text that matches no
// rule, including empty text, is General.
func Classify(text string) Intent {
	for _, r := range Rules {
		if r.Pattern.MatchString(text) {
			return r.Intent
		}
	}
	return General
}

// Valid reports whether in is one of the known intents.
func (in Intent) Valid() bool {
	switch in {
	case Appointment, Sales, Support, General:
		return true
	}
	return false
}
