package handler

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// operation is the verb specific part of a handler.
type operation struct {
	method        string
	needsCriteria bool
	status        int
	exec          func(ctx context.Context, m types.Model, req *Request, opts Options, criteria types.Criteria) (any, error)
}

// handler binds op and opts into a Handler. The returned Handler replies
// exactly once: Send with op.status on success, Fail otherwise.
func (p *Plugin) handler(op operation, opts Options) Handler {
	return func(ctx context.Context, req *Request, reply Reply) {
		result, err := p.run(ctx, op, opts, req)
		if err != nil {
			e := AsError(err)
			p.log.Error("handler failed",
				"method", op.method,
				"model", opts.Model,
				"status", e.StatusCode,
				"error", err)
			reply.Fail(e)
			return
		}
		reply.Send(op.status, result)
	}
}

func (p *Plugin) run(ctx context.Context, op operation, opts Options, req *Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%s: panic: %v", op.method, r)
		}
	}()

	if op.needsCriteria && opts.CriteriaResolver == nil {
		return nil, BadImplementation(MsgMissingCriteriaResolver)
	}

	model, err := p.models.GetModel(opts.Model)
	if err != nil {
		return nil, BadImplementation(fmt.Sprintf("model %q: %s", opts.Model, err))
	}

	if opts.UniqueID != "" && !model.Definition().IsUnique(opts.UniqueID) {
		return nil, BadData(MsgNotAUniqueID)
	}

	if opts.OnPreHandler != nil {
		if err := opts.OnPreHandler(ctx, req); err != nil {
			return nil, err
		}
	}

	var criteria types.Criteria
	if op.needsCriteria {
		criteria, err = opts.CriteriaResolver(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	result, err = op.exec(ctx, model, req, opts, criteria)
	if err != nil {
		return nil, err
	}

	if opts.OnPreReply != nil {
		return opts.OnPreReply(ctx, req, result)
	}
	return result, nil
}
