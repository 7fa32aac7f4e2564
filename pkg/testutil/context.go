package testutil

import (
	"net/http"
	"time"

	"trustscore/pkg/requestcontext"
)

// WithActor attaches an authenticated actor, as the auth middleware would.
func WithActor(req *http.Request, id, role string) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), requestcontext.ActorInfo{ID: id, Role: role})
	return req.WithContext(ctx)
}

// WithRequest stamps the request id and clock the request middleware would set.
func WithRequest(req *http.Request, requestID string, now time.Time) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	ctx = requestcontext.WithTime(ctx, now)
	return req.WithContext(ctx)
}
