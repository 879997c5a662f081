package session

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerTransport_RoundTrip(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/created":
			body, _ := io.ReadAll(r.Body)
			http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "tok"})
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Header().Set("X-Late", "ignored")
			_, _ = w.Write(append([]byte(`{"got":`), append(body, '}')...))
		case "/implicit":
			_, _ = io.WriteString(w, "ok")
		case "/empty":
		}
	})
	client := &http.Client{Transport: &HandlerTransport{Handler: h}}

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantCode   int
		wantBody   string
		wantCookie string
	}{
		{name: "explicit status", method: http.MethodPost, path: "/created", body: `"hi"`, wantCode: http.StatusCreated, wantBody: `{"got":"hi"}`, wantCookie: "tok"},
		{name: "implicit 200", method: http.MethodGet, path: "/implicit", wantCode: http.StatusOK, wantBody: "ok"},
		{name: "nothing written", method: http.MethodGet, path: "/empty", wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req, err := http.NewRequest(tt.method, "http://portal.internal"+tt.path, body)
			require.NoError(t, err)

			res, err := client.Do(req)
			require.NoError(t, err)
			defer res.Body.Close()

			got, err := io.ReadAll(res.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, res.StatusCode)
			assert.Equal(t, tt.wantBody, string(got))
			assert.Equal(t, int64(len(tt.wantBody)), res.ContentLength)
			assert.Empty(t, res.Header.Get("X-Late"), "headers are frozen once written")

			if tt.wantCookie != "" {
				require.Len(t, res.Cookies(), 1)
				assert.Equal(t, tt.wantCookie, res.Cookies()[0].Value)
			}
		})
	}
}
