package twilio

import (
	"sync"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/sheshield/sheshield/shared"
)

type ClientWrapper struct {
	client   *twilio.RestClient
	config   shared.TwilioConfig
	testMode bool

	mu               sync.Mutex
	recordedMessages []string
}

// NewClient wraps the twilio REST client. In test mode no client is built &
// messages are recorded instead of sent.
func NewClient(config shared.TwilioConfig, testMode bool) *ClientWrapper {
	cw := &ClientWrapper{config: config, testMode: testMode}
	if testMode {
		return cw
	}

	cw.client = twilio.NewRestClientWithParams(twilio.RestClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})

	return cw
}

// Available reports whether the SMS capability is usable i.e. the account
// is fully configured (always true in test mode).
func (cw *ClientWrapper) Available() bool {
	if cw.testMode {
		return true
	}

	return cw.config.AccountSid != "" &&
		cw.config.AuthToken != "" &&
		cw.config.MessagingServiceSid != ""
}

func (cw *ClientWrapper) SendMessage(to, msg string) error {
	if cw.testMode {
		cw.mu.Lock()
		defer cw.mu.Unlock()

		cw.recordedMessages = append(cw.recordedMessages, msg)
		return nil
	}

	params := &openapi.CreateMessageParams{}
	params.SetMessagingServiceSid(cw.config.MessagingServiceSid)
	params.SetTo(to)
	params.SetBody(msg)

	_, err := cw.client.ApiV2010.CreateMessage(params)
	if err != nil {
		return err
	}

	return nil
}

// RecordedMessages returns every message "sent" while in test mode.
func (cw *ClientWrapper) RecordedMessages() []string {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	return append([]string{}, cw.recordedMessages...)
}
