package alert

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/guonaihong/gout"
	"github.com/pkg/errors"
	"github.com/talkincode/toughwatch/config"
	"github.com/talkincode/toughwatch/internal/domain"
)

type desktopChannel struct{}

func (c *desktopChannel) Name() string { return "desktop" }

func (c *desktopChannel) Deliver(evt domain.AlertEvent) error {
	title, message := FormatAlert(evt)
	return beeep.Notify(title, message, "")
}

type soundChannel struct{}

func (c *soundChannel) Name() string { return "sound" }

func (c *soundChannel) Deliver(evt domain.AlertEvent) error {
	return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
}

const twilioMessagesURL = "https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json"

// smsChannel sends alerts through the Twilio REST API, one message per
// configured recipient.
type smsChannel struct {
	accountSid string
	authToken  string
	from       string
	to         []string
}

func newSmsChannel(cfg config.AlertConfig) *smsChannel {
	return &smsChannel{
		accountSid: cfg.TwilioAccountSid,
		authToken:  cfg.TwilioAuthToken,
		from:       cfg.TwilioFrom,
		to:         cfg.TwilioTo,
	}
}

func (c *smsChannel) Name() string { return "sms" }

// Deliver sends the alert by SMS. Informational transitions, a service
// coming back, stay off the paid channel.
func (c *smsChannel) Deliver(evt domain.AlertEvent) error {
	if evt.Severity() == domain.SeverityInfo {
		return nil
	}
	title, message := FormatAlert(evt)
	body := fmt.Sprintf("%s - %s", title, message)
	auth := "Basic " + base64.StdEncoding.EncodeToString(
		[]byte(c.accountSid+":"+c.authToken))
	url := fmt.Sprintf(twilioMessagesURL, c.accountSid)
	for _, to := range c.to {
		var code int
		var result struct {
			Sid     string `json:"sid"`
			Message string `json:"message"`
		}
		err := gout.POST(url).
			SetTimeout(10 * time.Second).
			SetHeader(gout.H{"Authorization": auth}).
			SetWWWForm(gout.H{"To": to, "From": c.from, "Body": body}).
			BindJSON(&result).
			Code(&code).
			Do()
		if err != nil {
			return errors.Wrapf(err, "twilio send to %s", to)
		}
		if code >= 300 {
			return errors.Errorf("twilio send to %s: HTTP %d %s", to, code, result.Message)
		}
	}
	return nil
}
