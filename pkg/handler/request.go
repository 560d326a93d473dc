package handler

import "context"

// Request is the inbound request as seen by a Handler. Handlers only read
// from it.
type Request struct {
	// Payload is the decoded request body: a map[string]any, a []any of
	// maps, or nil.
	Payload any
	// Params holds path parameters.
	Params map[string]string
	// Query holds query string values.
	Query map[string]string
	// Credentials holds the authenticated identity claims, if any.
	Credentials map[string]any
}

// Reply is the channel a Handler answers on. A Handler calls exactly one of
// Send or Fail, exactly once.
type Reply interface {
	Send(status int, payload any)
	Fail(err *Error)
}

// Handler processes one request and answers on reply.
type Handler func(ctx context.Context, req *Request, reply Reply)

// Response is a Reply that records what it was sent. Useful for hosts that
// write the response after the handler returns, and in tests.
type Response struct {
	Status  int
	Payload any
	Err     *Error
	Replies int
}

// Send records a success reply.
func (r *Response) Send(status int, payload any) {
	r.Status = status
	r.Payload = payload
	r.Replies++
}

// Fail records an error reply.
func (r *Response) Fail(err *Error) {
	r.Status = err.StatusCode
	r.Err = err
	r.Replies++
}
