package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/grocery-pos/internal/obs"
)

// Route describes the audit entry written for an administrative route.
type Route struct {
	Action       string
	ResourceType string
	// IDParam names the chi URL parameter holding the resource id.
	IDParam string
	// Metadata is attached as JSON when it returns a non-nil map.
	Metadata func(r *http.Request, status int) map[string]any
}

// Recorder audits requests once the wrapped handler has responded. Only
// successful (2xx) requests are recorded; failed attempts are logged by
// the request logger instead.
type Recorder struct {
	Service *Service
	OnError func(error)
}

func (rec Recorder) Handler(route Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rec.Service == nil || !rec.Service.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sr := obs.NewStatusRecorder(w)
			next.ServeHTTP(sr, r)

			status := sr.Status()
			if status < 200 || status >= 300 {
				return
			}
			var resourceID string
			if route.IDParam != "" {
				resourceID = chi.URLParam(r, route.IDParam)
			}
			var metadata json.RawMessage
			if route.Metadata != nil {
				if m := route.Metadata(r, status); m != nil {
					metadata, _ = json.Marshal(m)
				}
			}
			err := rec.Service.RecordRequest(r, route.Action, route.ResourceType, resourceID, status, metadata)
			if err != nil && rec.OnError != nil {
				rec.OnError(err)
			}
		})
	}
}
