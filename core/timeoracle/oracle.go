// Package timeoracle asks a remote world-time service for the current time, and falls
// back to the local clock whenever the service cannot answer.
package timeoracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
)

const (
	DefaultBaseURL = "https://api.api-ninjas.com"
	DefaultCity    = "Manila"

	FieldDatetime = "datetime"
	FieldError    = "error"

	worldTimePath = "/v1/worldtime"
)

var nowFunc = time.Now // mockable

// Payload is the decoded world-time response, e.g. {"timezone": "Asia/Manila",
// "datetime": "2024-06-15 08:00:00", "day_of_week": "Saturday", ...}.
type Payload map[string]interface{}

type Options struct {
	BaseURL string
	APIKey  string
	City    string
	Client  *rest.Client
	Logger  core.Logger
	// OnFallback is called every time the local clock had to be used.
	OnFallback func(err error)
}

type Oracle struct {
	baseURL    string
	apiKey     string
	city       string
	client     *rest.Client
	logger     core.Logger
	onFallback func(err error)
}

func New(opts Options) *Oracle {
	vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Logger, "Logger"),
	).CheckAndPanic()

	o := &Oracle{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		city:       opts.City,
		client:     opts.Client,
		logger:     opts.Logger,
		onFallback: opts.OnFallback,
	}
	if o.baseURL == "" {
		o.baseURL = DefaultBaseURL
	}
	if o.city == "" {
		o.city = DefaultCity
	}
	if o.client == nil {
		o.client = &rest.Client{HTTPClient: &http.Client{Timeout: 10 * time.Second}}
	}
	return o
}

// ServerTime returns payload[field] for city, or the whole Payload when field is empty.
// It never fails: on any error the local clock is used and the error message is put
// under the "error" key.
func (o *Oracle) ServerTime(ctx context.Context, field, city string) interface{} {
	payload := o.Fetch(ctx, city)
	if field == "" {
		return payload
	}
	return payload[field]
}

// Datetime is the server datetime string for the default city.
func (o *Oracle) Datetime(ctx context.Context) string {
	s, _ := o.ServerTime(ctx, FieldDatetime, "").(string)
	return s
}

// Fetch makes exactly one request to the time service.
func (o *Oracle) Fetch(ctx context.Context, city string) Payload {
	if city == "" {
		city = o.city
	}
	payload, err := o.fetch(ctx, city)
	if err != nil {
		return o.fallback(city, err)
	}
	return payload
}

func (o *Oracle) fetch(ctx context.Context, city string) (Payload, error) {
	req := rest.Request{
		Method:      rest.Get,
		BaseURL:     o.baseURL + worldTimePath,
		Headers:     map[string]string{"X-Api-Key": o.apiKey, "Accept": "application/json"},
		QueryParams: map[string]string{"city": city},
	}
	res, err := core.SendRequest(ctx, o.client, req)
	if err != nil {
		return nil, errors.Wrap(err, "requesting world time")
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("world time service responded with status %d", res.StatusCode)
	}

	var payload Payload
	if err := json.Unmarshal([]byte(res.Body), &payload); err != nil {
		return nil, errors.Wrap(err, "decoding world time payload")
	}
	if _, ok := payload[FieldDatetime].(string); !ok {
		return nil, errors.New("world time payload has no datetime")
	}
	return payload, nil
}

func (o *Oracle) fallback(city string, err error) Payload {
	o.logger.Warn(fmt.Sprintf("server time for %q unavailable, using local clock", city), err)
	if o.onFallback != nil {
		o.onFallback(err)
	}
	return Payload{
		FieldDatetime: nowFunc().Format(time.RFC3339),
		FieldError:    err.Error(),
	}
}
