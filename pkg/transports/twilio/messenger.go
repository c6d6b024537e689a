package twilio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/harunnryd/cleanline/pkg/transports"
)

type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// Messenger sends SMS through the Twilio REST API.
type Messenger struct {
	cfg    Config
	client messageCreator
}

func NewMessenger(cfg Config) *Messenger {
	return &Messenger{cfg: cfg.WithDefaults()}
}

// Send creates one message and returns its SID. The REST client has no
// context support, so ctx is only checked before the call.
func (m *Messenger) Send(ctx context.Context, to, from, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(to) == "" || strings.TrimSpace(from) == "" {
		return "", errors.New("to/from required")
	}
	client := m.client
	if client == nil {
		if m.cfg.AccountSID == "" || m.cfg.AuthToken == "" {
			return "", errors.New("missing twilio credentials")
		}
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: m.cfg.AccountSID,
			Password: m.cfg.AuthToken,
		})
		client = rest.Api
	}
	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)
	resp, err := client.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Sid == nil {
		return "", fmt.Errorf("missing message sid")
	}
	return *resp.Sid, nil
}

var _ transports.Messenger = (*Messenger)(nil)
