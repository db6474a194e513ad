package graph

import "context"

type clientRequestIDKey struct{}

// WithClientRequestID attaches an id that is sent to Graph as the
// client-request-id header, correlating our logs with Graph's.
func WithClientRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientRequestIDKey{}, id)
}

// ClientRequestID returns the id attached by WithClientRequestID.
func ClientRequestID(ctx context.Context) string {
	id, _ := ctx.Value(clientRequestIDKey{}).(string)
	return id
}
