package observability

import "context"

// RequestTags is filled by inner middleware so the access log can report who
// made the request.
type RequestTags struct {
	UserID string
	Role   string
}

type tagsKey struct{}

// WithRequestTags attaches tags to ctx.
func WithRequestTags(ctx context.Context, t *RequestTags) context.Context {
	return context.WithValue(ctx, tagsKey{}, t)
}

// TagRequest records the authenticated user on the current request, if the
// access log middleware is in the chain.
func TagRequest(ctx context.Context, userID, role string) {
	if t, ok := ctx.Value(tagsKey{}).(*RequestTags); ok {
		t.UserID = userID
		t.Role = role
	}
}
