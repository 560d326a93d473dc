package handler

import (
	"context"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// CriteriaResolver produces the criteria a handler passes to the store.
type CriteriaResolver func(ctx context.Context, req *Request) (types.Criteria, error)

// PreHandlerHook runs before the store operation. Returning an error aborts
// the request.
type PreHandlerHook func(ctx context.Context, req *Request) error

// PreReplyHook receives the store operation's result and returns the payload
// to reply with.
type PreReplyHook func(ctx context.Context, req *Request, result any) (any, error)

// Options configures one handler. Options are read once when the handler is
// built and never modified afterwards.
type Options struct {
	// Model names the model the handler operates on.
	Model string
	// CriteriaResolver selects records. Required for update, get and delete.
	CriteriaResolver CriteriaResolver
	// OnPreHandler runs before the store operation.
	OnPreHandler PreHandlerHook
	// OnPreReply may replace the store operation's result before replying.
	OnPreReply PreReplyHook
	// UniqueID names an attribute that must be unique in the model
	// definition. Get replies with a single record when it is set.
	UniqueID string
	// CredentialKey names a credential copied into the created record under
	// the same key.
	CredentialKey string
}
