package handler

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// StaticCriteria always resolves to a copy of c.
func StaticCriteria(c types.Criteria) CriteriaResolver {
	return func(context.Context, *Request) (types.Criteria, error) {
		out := make(types.Criteria, len(c))
		for k, v := range c {
			out[k] = v
		}
		return out, nil
	}
}

// CriteriaFromParams matches field against the path parameter param.
// A missing parameter is a bad request.
func CriteriaFromParams(field, param string) CriteriaResolver {
	return func(_ context.Context, req *Request) (types.Criteria, error) {
		v, ok := req.Params[param]
		if !ok {
			return nil, BadRequest(fmt.Sprintf("missing path parameter %q", param))
		}
		return types.Criteria{field: v}, nil
	}
}

// CriteriaFromCredentials matches field against the credential key.
// A missing credential is unauthorized.
func CriteriaFromCredentials(field, key string) CriteriaResolver {
	return func(_ context.Context, req *Request) (types.Criteria, error) {
		v, ok := req.Credentials[key]
		if !ok {
			return nil, Unauthorized(fmt.Sprintf("missing credential %q", key))
		}
		return types.Criteria{field: v}, nil
	}
}

// CriteriaFromQuery matches each listed field against the query value of the
// same name. Fields absent from the query are not constrained.
func CriteriaFromQuery(fields ...string) CriteriaResolver {
	return func(_ context.Context, req *Request) (types.Criteria, error) {
		c := types.Criteria{}
		for _, f := range fields {
			if v, ok := req.Query[f]; ok {
				c[f] = v
			}
		}
		return c, nil
	}
}

// MergeCriteria runs resolvers in order and merges their criteria. Later
// resolvers win on conflicting keys.
func MergeCriteria(resolvers ...CriteriaResolver) CriteriaResolver {
	return func(ctx context.Context, req *Request) (types.Criteria, error) {
		out := types.Criteria{}
		for _, r := range resolvers {
			c, err := r(ctx, req)
			if err != nil {
				return nil, err
			}
			for k, v := range c {
				out[k] = v
			}
		}
		return out, nil
	}
}
