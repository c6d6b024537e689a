// Package broadcast fans conversation events out to live observers. Delivery
// is best-effort: nothing is persisted, replayed or acknowledged.
package broadcast

import "time"

const (
	TypeInbound  = "inbound"
	TypeOutbound = "outbound"
)

// EventRecord is one conversation event as seen by observers.
type EventRecord struct {
	Type      string    `json:"type"`
	Channel   string    `json:"channel"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

func Inbound(channel, from, to, body string) EventRecord {
	return EventRecord{Type: TypeInbound, Channel: channel, From: from, To: to, Body: body, Timestamp: time.Now().UTC()}
}

func Outbound(channel, from, to, body string) EventRecord {
	return EventRecord{Type: TypeOutbound, Channel: channel, From: from, To: to, Body: body, Timestamp: time.Now().UTC()}
}
