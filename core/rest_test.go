package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/slow":
			<-r.Context().Done()
			return
		case "/echo":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"city":"` + r.URL.Query().Get("city") + `","key":"` + r.Header.Get("X-Api-Key") + `"}`))
		}
	}))
	defer srv.Close()

	client := &rest.Client{HTTPClient: srv.Client()}

	t.Run("response", func(t *testing.T) {
		res, err := SendRequest(context.Background(), client, rest.Request{
			Method:      rest.Get,
			BaseURL:     srv.URL + "/echo",
			Headers:     map[string]string{"X-Api-Key": "k1"},
			QueryParams: map[string]string{"city": "Manila"},
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, res.StatusCode)
		assert.JSONEq(t, `{"city":"Manila","key":"k1"}`, res.Body)
	})

	t.Run("nil client", func(t *testing.T) {
		res, err := SendRequest(context.Background(), nil, rest.Request{Method: rest.Get, BaseURL: srv.URL + "/echo"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, res.StatusCode)
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := SendRequest(ctx, client, rest.Request{Method: rest.Get, BaseURL: srv.URL + "/slow"})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}
