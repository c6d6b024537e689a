package turn

import (
	"strings"
	"time"

	"github.com/harunnryd/cleanline/pkg/errorsx"
	"github.com/harunnryd/cleanline/pkg/quote"
)

// Channel is the medium a turn arrived on and is answered through.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelVoice Channel = "voice"
	ChannelRelay Channel = "relay"
)

// InboundEvent is one customer utterance. It is passed by value and never
// retained after its turn completes.
type InboundEvent struct {
	Channel      Channel
	Sender       string
	Endpoint     string
	Text         string
	CallSID      string
	RecordingURL string
	Context      map[string]string
	TraceID      string
	ReceivedAt   time.Time
}

// Validate rejects events that cannot start a turn.
func (ev InboundEvent) Validate() error {
	switch ev.Channel {
	case ChannelSMS:
		var missing []string
		if strings.TrimSpace(ev.Sender) == "" {
			missing = append(missing, "From")
		}
		if strings.TrimSpace(ev.Endpoint) == "" {
			missing = append(missing, "To")
		}
		if strings.TrimSpace(ev.Text) == "" {
			missing = append(missing, "Body")
		}
		if len(missing) > 0 {
			return errorsx.Invalid("sms: missing %s", strings.Join(missing, ", "))
		}
	case ChannelVoice:
		if strings.TrimSpace(ev.CallSID) == "" {
			return errorsx.Invalid("voice: missing CallSid")
		}
	case ChannelRelay:
	default:
		return errorsx.Invalid("unknown channel %q", ev.Channel)
	}
	return nil
}

// Region returns the pricing region carried in the event context, if any.
func (ev InboundEvent) Region() string {
	if ev.Context == nil {
		return ""
	}
	return ev.Context["region"]
}

// OutboundAction is the channel-specific result of a turn. Exactly one of
// SMS, VoiceMarkup or Relay is set, matching Channel.
type OutboundAction struct {
	Channel     Channel
	SMS         *SMSAction
	VoiceMarkup string
	Relay       *RelayReply
}

type SMSAction struct {
	To      string
	From    string
	Body    string
	Receipt string
}

// RelayReply is the frame written back on the relay socket.
type RelayReply struct {
	Text     string       `json:"text"`
	AudioURL *string      `json:"audioUrl"`
	Quote    *quote.Quote `json:"quote"`
}
