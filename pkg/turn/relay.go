package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harunnryd/cleanline/pkg/broadcast"
	"github.com/harunnryd/cleanline/pkg/errorsx"
	"github.com/harunnryd/cleanline/pkg/metrics"
)

type relayFrame struct {
	Speech struct {
		Text string `json:"text"`
	} `json:"speech"`
	Context map[string]any `json:"context"`
}

type relayError struct {
	Error string `json:"error"`
}

var processingFailed = mustMarshal(relayError{Error: "Processing failed"})

// ProcessingFailed is the frame written for any relay turn that cannot
// produce a reply.
func ProcessingFailed() []byte {
	return append([]byte(nil), processingFailed...)
}

// HandleRelay answers one relay frame. It always returns a frame to write
// back; failures are reported in-band and never close the socket.
func (r *Router) HandleRelay(ctx context.Context, connID string, raw []byte) (out []byte) {
	log := r.log.With("channel", string(ChannelRelay), "conn_id", connID)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("relay_turn_panic", "panic", fmt.Sprint(rec))
			metrics.Record(r.obs, metrics.EventTurnFailed, 1, map[string]string{"channel": string(ChannelRelay)})
			out = ProcessingFailed()
		}
	}()

	ev, err := decodeRelay(raw)
	if err != nil {
		log.Warn("relay_frame_rejected", "reason", string(errorsx.Reason(err)), "error", err)
		metrics.Record(r.obs, metrics.EventTurnFailed, 1, map[string]string{
			"channel": string(ChannelRelay),
			"reason":  string(errorsx.Reason(err)),
		})
		return ProcessingFailed()
	}
	if ev.Sender == "" {
		ev.Sender = connID
	}
	ev = r.stamp(ev)
	sm := r.newTurn(ev)
	defer sm.Dispatch("replied")

	r.broadcast(broadcast.Inbound(string(ChannelRelay), ev.Sender, ev.Endpoint, ev.Text))
	res, audioURL := r.completeSpoken(ctx, sm, ev, ev.Text)

	reply := RelayReply{Text: res.Text, Quote: res.Quote}
	if audioURL != "" {
		reply.AudioURL = &audioURL
	}
	b, err := json.Marshal(reply)
	if err != nil {
		log.Error("relay_encode_failed", "error", err)
		return ProcessingFailed()
	}
	r.broadcast(broadcast.Outbound(string(ChannelRelay), ev.Endpoint, ev.Sender, res.Text))
	return b
}

// decodeRelay turns a raw frame into an event. Sender comes from
// context.from, then context.callSid.
func decodeRelay(raw []byte) (InboundEvent, error) {
	var f relayFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return InboundEvent{}, errorsx.Wrap(err, errorsx.ReasonRelayDecode)
	}
	text := strings.TrimSpace(f.Speech.Text)
	if text == "" {
		return InboundEvent{}, errorsx.Invalid("relay: empty speech text")
	}
	ctx := make(map[string]string, len(f.Context))
	for k, v := range f.Context {
		switch t := v.(type) {
		case string:
			ctx[k] = t
		case nil:
		default:
			ctx[k] = fmt.Sprint(t)
		}
	}
	ev := InboundEvent{
		Channel:  ChannelRelay,
		Text:     text,
		Sender:   ctx["from"],
		Endpoint: ctx["to"],
		CallSID:  ctx["callSid"],
		Context:  ctx,
	}
	if ev.Sender == "" {
		ev.Sender = ev.CallSID
	}
	return ev, nil
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
