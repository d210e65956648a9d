package query

import (
	"context"
	"net/url"

	"github.com/relabs-tech/docrest/core"
)

// Request describes the request a hook is called for
type Request struct {
	// Resource is the path of the resource, for example "houses/rooms"
	Resource string
	// Operation is the requested operation
	Operation core.Operation
	// Params are the path identifier values in route order
	Params []string
	// Values are the query parameters
	Values url.Values
}

type contextKeyRequestType struct{}

var contextKeyRequest = &contextKeyRequestType{}

// ContextWithRequest returns a new context carrying request
func ContextWithRequest(ctx context.Context, request Request) context.Context {
	return context.WithValue(ctx, contextKeyRequest, request)
}

// RequestFromContext returns the request carried by ctx
func RequestFromContext(ctx context.Context) (Request, bool) {
	request, ok := ctx.Value(contextKeyRequest).(Request)
	return request, ok
}
