package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/noah-isme/grocery-pos/internal/common"
	"github.com/noah-isme/grocery-pos/internal/obs"
)

// Entry is one audited action.
type Entry struct {
	ID           string          `json:"id"`
	ActorID      string          `json:"actorId,omitempty"`
	ActorRole    string          `json:"actorRole,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Status       int             `json:"status,omitempty"`
	IP           string          `json:"ip,omitempty"`
	RequestID    string          `json:"requestId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Store defines the persistence required for auditing.
type Store interface {
	InsertAuditLog(ctx context.Context, entry Entry) error
}

// Service persists audit logs for voids, refunds and administrative changes.
type Service struct {
	Store   Store
	Enabled bool
	Now     func() time.Time
}

// Record persists e when auditing is enabled. Actor and request id are taken
// from the context when not set explicitly.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if s == nil || !s.Enabled {
		return nil
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}
	e.Action = strings.TrimSpace(e.Action)
	if e.Action == "" {
		return errors.New("audit: action is required")
	}
	if e.ResourceType == "" {
		e.ResourceType = "unknown"
	}
	if e.ActorID == "" {
		if actor, ok := common.ActorFrom(ctx); ok {
			e.ActorID = actor.ID
			e.ActorRole = actor.Role
		}
	}
	if e.RequestID == "" {
		e.RequestID = middleware.GetReqID(ctx)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	e.CreatedAt = now().UTC()
	return s.Store.InsertAuditLog(ctx, e)
}

// RecordRequest audits an HTTP request after it was handled.
func (s *Service) RecordRequest(req *http.Request, action, resourceType, resourceID string, status int, metadata []byte) error {
	if req == nil {
		return errors.New("audit: request is required")
	}
	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if strings.TrimSpace(action) == "" {
		action = strings.ToUpper(req.Method) + " " + route
	}
	if strings.TrimSpace(resourceType) == "" {
		resourceType = resourceFromRoute(route)
	}
	if status == 0 {
		status = http.StatusOK
	}
	return s.Record(req.Context(), Entry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   strings.TrimSpace(resourceID),
		Status:       status,
		IP:           common.ClientIP(req),
		RequestID:    strings.TrimSpace(req.Header.Get("X-Request-ID")),
		Metadata:     metadata,
	})
}

func resourceFromRoute(route string) string {
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		segments = segments[2:]
	}
	kept := segments[:0]
	for _, seg := range segments {
		if strings.HasPrefix(seg, "{") {
			continue
		}
		kept = append(kept, seg)
	}
	return strings.Join(kept, ".")
}
