// Package handler builds generic CRUD request handlers bound to a named model.
//
// A Plugin registers four factories on a Host: handler.create, handler.update,
// handler.get and handler.delete. Each factory takes Options and returns a
// Handler that runs the same lifecycle:
//
//	options check -> unique id check -> OnPreHandler -> store operation -> OnPreReply -> reply
//
// Every invocation produces exactly one reply. Failures at any stage are
// logged once and replied as an *Error.
//
// Example:
//
//	p, err := handler.Register(host, handler.PluginOptions{Logger: slog.Default()})
//	if err != nil {
//	    return err
//	}
//	get := p.Get(handler.Options{
//	    Model:            "things",
//	    UniqueID:         "id",
//	    CriteriaResolver: handler.CriteriaFromParams("id", "id"),
//	})
//	get(ctx, req, reply)
package handler
