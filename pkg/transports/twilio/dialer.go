package twilio

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/harunnryd/cleanline/pkg/transports"
)

type callCreator interface {
	CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error)
}

// Dialer provides outbound call creation via Twilio REST API.
type Dialer struct {
	cfg    Config
	client callCreator
}

// NewDialer creates a new Twilio dialer.
func NewDialer(cfg Config) *Dialer {
	return &Dialer{cfg: cfg.WithDefaults()}
}

// Dial places an outbound call that opens with the greeting for company.
func (d *Dialer) Dial(ctx context.Context, to, from, company string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if to == "" || from == "" {
		return "", errors.New("to/from required")
	}
	client := d.client
	if client == nil {
		if d.cfg.AccountSID == "" || d.cfg.AuthToken == "" {
			return "", errors.New("missing twilio credentials")
		}
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: d.cfg.AccountSID,
			Password: d.cfg.AuthToken,
		})
		client = rest.Api
	}
	params := &api.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetUrl(d.outboundURL(company))
	params.SetStatusCallback(d.webhookURL(d.cfg.StatusCallbackPath))
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
	resp, err := client.CreateCall(params)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Sid == nil {
		return "", fmt.Errorf("missing call sid")
	}
	return *resp.Sid, nil
}

func (d *Dialer) outboundURL(company string) string {
	u := d.webhookURL(d.cfg.OutboundPath)
	if company = strings.TrimSpace(company); company != "" {
		u += "?company=" + url.QueryEscape(company)
	}
	return u
}

func (d *Dialer) webhookURL(path string) string {
	if d.cfg.PublicURL != "" {
		return "https://" + normalizePublicURL(d.cfg.PublicURL) + path
	}
	addr := d.cfg.ServerAddr
	if addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + path
}

var _ transports.OutboundDialer = (*Dialer)(nil)
