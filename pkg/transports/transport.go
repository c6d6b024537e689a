package transports

import "context"

// Transport is a vendor-agnostic inbound boundary: it owns its network
// lifecycle and hands inbound events to the turn router.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// Messenger sends a text message and returns the provider receipt id.
type Messenger interface {
	Send(ctx context.Context, to, from, body string) (receipt string, err error)
}

// OutboundDialer allows transports to initiate outbound calls. company is
// named in the greeting the call opens with.
type OutboundDialer interface {
	Dial(ctx context.Context, to, from, company string) (callSID string, err error)
}

// ReadyReporter allows transports to expose readiness metadata (e.g., webhook URLs).
// Implementations are optional and used for informational logging only.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
