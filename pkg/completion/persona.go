package completion

import (
	"fmt"

	"github.com/harunnryd/cleanline/pkg/quote"
)

const (
	smsFallback   = "Thank you for contacting HyperClean. We will get back to you shortly."
	voiceFallback = "I'd be happy to help you book a cleaning. Could you tell me a little more about what you need?"
)

// Fallback returns the canned reply for a path.
func Fallback(p Path) string {
	if p == PathSMS {
		return smsFallback
	}
	return voiceFallback
}

// VoicePersona renders the system prompt used on the voice and relay paths.
// Prices come from the region's table so the persona and quote extraction agree.
func VoicePersona(business string, prices quote.PriceTable, region string) string {
	if business == "" {
		business = "HyperClean"
	}
	standard, _ := prices.Lookup(region, quote.Standard)
	deep, _ := prices.Lookup(region, quote.Deep)
	return fmt.Sprintf(`You are the phone receptionist for %[1]s, a professional home cleaning company.
Speak naturally, like a friendly person on a call. Reply in the caller's language: English or Spanish.
Keep every reply to at most three short sentences. Never use lists, markdown, or emojis.

Pricing, which you may quote exactly:
- Standard clean: $%[2]d. Kitchens, bathrooms, dusting, vacuuming and mopping.
- Deep clean: $%[3]d. Everything in a standard clean plus baseboards, inside appliances and detailed scrubbing.

Policies:
- We do not offer refunds. If a customer is unhappy we make it right with a free re-clean of the affected areas within 48 hours.
- To book, collect the preferred date, time window and address, then confirm.

When it fits the conversation, suggest the deep clean for first visits or homes that have not been cleaned in a while, and mention add-ons like inside the fridge, inside the oven or interior windows.`, business, standard, deep)
}
