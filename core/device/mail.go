package device

import (
	"fmt"
	"net/mail"
	"net/url"
	"time"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
)

const (
	overrideTemplate = "device_override"
	ConfirmPath      = "/confirm-device-override"
)

type overrideMailData struct {
	Name        string
	DeviceLabel string
	Link        string
	ExpiresIn   string
}

// ConfirmLink builds the one-time link sent to the requester.
func ConfirmLink(conf *core.Config, token string) string {
	return conf.FrontendBaseURL + ConfirmPath + "?token=" + url.QueryEscape(token)
}

func overrideMessage(requester member.Member, d Device, tok OverrideToken, conf *core.Config) *core.EmailMessage {
	label := d.Label
	if label == "" {
		label = d.DeviceID
	}
	return &core.EmailMessage{
		To:           []mail.Address{{Name: requester.Name, Address: tok.UserEmail}},
		Subject:      "Confirm device override",
		TemplateName: overrideTemplate,
		TemplateData: overrideMailData{
			Name:        requester.Name,
			DeviceLabel: label,
			Link:        ConfirmLink(conf, tok.Token),
			ExpiresIn:   humanDuration(tok.ExpiresAt.Sub(tok.CreatedAt)),
		},
	}
}

func humanDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int(d/time.Hour), "hour")
	}
	return plural(int(d/time.Minute), "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
