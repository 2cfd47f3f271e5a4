package common

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Idem provides an Idempotency-Key middleware backed by Redis. The first
// request with a key runs; its response is stored and replayed for retries
// carrying the same key and actor.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

func hashKey(actorID, key string) string {
	sum := sha256.Sum256([]byte(actorID + "\x00" + key))
	return "pos:idem:" + hex.EncodeToString(sum[:])
}

// Middleware enforces idempotency semantics for write endpoints.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ttl := i.TTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ctx := r.Context()
		actor, _ := ActorFrom(ctx)
		key := hashKey(actor.ID, header)
		respKey := key + ":resp"

		ok, err := i.R.SetNX(ctx, key, "locked", ttl).Result()
		if err != nil {
			JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "idempotency store error", nil)
			return
		}
		if !ok {
			raw, err := i.R.Get(ctx, respKey).Bytes()
			if err != nil {
				JSONError(w, http.StatusConflict, "IDEMPOTENT_IN_PROGRESS", "a request with this idempotency key is still running", nil)
				return
			}
			var stored storedResponse
			if err := json.Unmarshal(raw, &stored); err != nil {
				JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replay", "true")
			w.WriteHeader(stored.Status)
			_, _ = w.Write(stored.Body)
			return
		}

		rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		bg := context.WithoutCancel(ctx)
		if rec.status >= http.StatusInternalServerError {
			// Let the client retry after a server failure.
			_ = i.R.Del(bg, key).Err()
			return
		}
		body := rec.buf.Bytes()
		if !json.Valid(body) {
			body = []byte("null")
		}
		if encoded, err := json.Marshal(storedResponse{Status: rec.status, Body: body}); err == nil {
			_ = i.R.Set(bg, respKey, encoded, ttl).Err()
		}
	})
}

type recordingWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *recordingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	return w.ResponseWriter.Write(p)
}
