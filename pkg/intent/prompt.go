package intent

import "strings"

const persona = "You are a friendly customer service assistant for HyperClean, a professional home cleaning company. Reply by text message in a warm, concise tone and keep the reply under 300 characters."

var clauses = map[Intent]string{
	Appointment: "The customer wants to book or change a cleaning appointment. Ask for their preferred date, time window, and address, and confirm we will lock in the slot once we have them.",
	Sales:       "The customer is asking about pricing. Standard cleaning starts at $129 and deep cleaning at $149. Briefly explain the difference and offer to book.",
	Support:     "The customer has a problem with a past cleaning. Apologize sincerely, tell them we will make it right with a free re-clean of the affected areas, and ask what was missed.",
	General:     "Answer the customer's question helpfully and briefly, then offer to help them book a cleaning.",
}

// BuildPrompt renders the completion prompt for an SMS turn. The sender
// address appears exactly once and text is included verbatim.
func BuildPrompt(in Intent, sender, text string) string {
	clause, ok := clauses[in]
	if !ok {
		clause = clauses[General]
	}
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nCustomer phone: ")
	b.WriteString(sender)
	b.WriteString("\nCustomer message: ")
	b.WriteString(text)
	b.WriteString("\n\n")
	b.WriteString(clause)
	return b.String()
}
