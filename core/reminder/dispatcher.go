package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
)

const sendMailPath = "/api/sendmail"

// Mail is the body accepted by the mail-send endpoint.
type Mail struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Text      string `json:"text"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, m Mail) error
}

// HTTPDispatcher posts each Mail to the mail-send endpoint of the portal API.
type HTTPDispatcher struct {
	BaseURL string
	Token   string // sent as a bearer token when set
	Client  *rest.Client
}

var _ Dispatcher = (*HTTPDispatcher)(nil)

func (d *HTTPDispatcher) Dispatch(ctx context.Context, m Mail) error {
	body, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encoding mail")
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if d.Token != "" {
		headers["Authorization"] = "Bearer " + d.Token
	}
	res, err := core.SendRequest(ctx, d.Client, rest.Request{
		Method:  rest.Post,
		BaseURL: strings.TrimRight(d.BaseURL, "/") + sendMailPath,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return errors.Wrapf(err, "sending mail to %s", m.Recipient)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("mail endpoint responded with status %d: %s", res.StatusCode, strings.TrimSpace(res.Body))
	}
	return nil
}

// EmailDispatcher sends each Mail straight through an email service, for callers
// that run the job outside the API process.
type EmailDispatcher struct {
	Mailer core.EmailService
}

var _ Dispatcher = (*EmailDispatcher)(nil)

func (d *EmailDispatcher) Dispatch(ctx context.Context, m Mail) error {
	if err := d.Mailer.SendMessage(ctx, core.NewTextMessage(m.Recipient, m.Subject, m.Text)); err != nil {
		return errors.Wrapf(err, "sending mail to %s", m.Recipient)
	}
	return nil
}
