package core

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
)

// SendRequest sends req through client with ctx attached, so cancellation and
// deadlines reach the underlying *http.Client. A nil client uses http.DefaultClient.
func SendRequest(ctx context.Context, client *rest.Client, req rest.Request) (*rest.Response, error) {
	if client == nil || client.HTTPClient == nil {
		client = &rest.Client{HTTPClient: http.DefaultClient}
	}
	httpReq, err := rest.BuildRequestObject(req)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	res, err := client.MakeRequest(httpReq.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return rest.BuildResponse(res)
}
