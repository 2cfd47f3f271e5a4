package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func echo(t *testing.T, captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		*captured = string(data)
		w.WriteHeader(http.StatusOK)
	})
}

func TestBodyLimitPassesSmallBaskets(t *testing.T) {
	var captured string
	h := BodyLimit{Max: 64}.Middleware(echo(t, &captured))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(`{"items":[]}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, `{"items":[]}`, captured)
}

func TestBodyLimitRejectsOversized(t *testing.T) {
	var captured string
	h := BodyLimit{Max: 5}.Middleware(echo(t, &captured))

	for name, req := range map[string]*http.Request{
		"declared": httptest.NewRequest(http.MethodPost, "/", strings.NewReader("excessive")),
		"streamed": func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("excessive"))
			r.ContentLength = -1
			return r
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
			require.Contains(t, rr.Body.String(), "PAYLOAD_TOO_LARGE")
		})
	}
	require.Empty(t, captured)
}

func TestBodyLimitDisabled(t *testing.T) {
	var captured string
	h := BodyLimit{}.Middleware(echo(t, &captured))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("anything at all")))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "anything at all", captured)
}
