package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

const RequestIDKey contextKey = "request_id"

// requestInfo is shared by every middleware layer of one request, so values
// resolved deep in the chain (the user id) reach the access log and Sentry.
type requestInfo struct {
	mu     sync.Mutex
	id     string
	userID string
}

// RequestID injects a request ID into context and response headers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, &requestInfo{id: requestID})
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID from context.
func GetRequestID(ctx context.Context) string {
	if info := getRequestInfo(ctx); info != nil {
		return info.id
	}
	return ""
}

func getRequestInfo(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(RequestIDKey).(*requestInfo)
	return info
}

func (i *requestInfo) user() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.userID
}

func setRequestUserID(ctx context.Context, userID string) {
	info := getRequestInfo(ctx)
	if info == nil {
		return
	}
	info.mu.Lock()
	info.userID = userID
	info.mu.Unlock()
}
