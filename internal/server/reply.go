package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"

	"github.com/mesh-intelligence/crudkit/pkg/handler"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ginReply writes a handler reply as JSON.
type ginReply struct {
	c *gin.Context
}

func (r ginReply) Send(status int, payload any) {
	r.c.JSON(status, payload)
}

func (r ginReply) Fail(err *handler.Error) {
	r.c.JSON(err.StatusCode, err)
}

// serve adapts h to gin.
func serve(h handler.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := newRequest(c)
		if err != nil {
			abort(c, err)
			return
		}
		h(c.Request.Context(), req, ginReply{c: c})
	}
}

// newRequest decodes the JSON body and collects path parameters, query
// values and credentials.
func newRequest(c *gin.Context) (*handler.Request, *handler.Error) {
	req := &handler.Request{
		Params: make(map[string]string, len(c.Params)),
		Query:  make(map[string]string),
	}

	body, err := c.GetRawData()
	if err != nil {
		return nil, handler.BadRequest(fmt.Sprintf("read body: %s", err))
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req.Payload); err != nil {
			return nil, handler.BadRequest(fmt.Sprintf("invalid JSON body: %s", err))
		}
	}

	for _, p := range c.Params {
		req.Params[p.Key] = p.Value
	}
	for k, vs := range c.Request.URL.Query() {
		if len(vs) > 0 {
			req.Query[k] = vs[0]
		}
	}
	if v, ok := c.Get(credentialsKey); ok {
		req.Credentials, _ = v.(map[string]any)
	}
	return req, nil
}
