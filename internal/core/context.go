package core

import "context"

// Client identifies who sent a request. It is stored on uploaded datasets
// in the audit trail.
type Client struct {
	IP        string
	UserAgent string
}

type clientKey struct{}

// WithClient attaches c to ctx.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientFromContext returns the Client set by WithClient, or the zero value.
func ClientFromContext(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}
