package handler

import (
	"context"
	"net/http"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Create returns a handler that stores the request payload. An object
// payload creates one record and replies with it; an array payload creates
// one record per element and replies with all of them. When
// opts.CredentialKey names a credential present on the request, its value is
// stored under the same key. Replies 201.
func (p *Plugin) Create(opts Options) Handler {
	return p.handler(operation{
		method: MethodCreate,
		status: http.StatusCreated,
		exec:   execCreate,
	}, opts)
}

// Update returns a handler that applies the request payload to the records
// selected by opts.CriteriaResolver and replies with the first updated
// record.
func (p *Plugin) Update(opts Options) Handler {
	return p.handler(operation{
		method:        MethodUpdate,
		needsCriteria: true,
		status:        http.StatusOK,
		exec:          execUpdate,
	}, opts)
}

// Get returns a handler that replies with the records selected by
// opts.CriteriaResolver, or with the single matching record when
// opts.UniqueID is set. An empty result replies not found.
func (p *Plugin) Get(opts Options) Handler {
	return p.handler(operation{
		method:        MethodGet,
		needsCriteria: true,
		status:        http.StatusOK,
		exec:          execGet,
	}, opts)
}

// Delete returns a handler that destroys the records selected by
// opts.CriteriaResolver and replies with the primary key of the destroyed
// record, or an array of them when several were destroyed. Nothing destroyed
// replies not found.
func (p *Plugin) Delete(opts Options) Handler {
	return p.handler(operation{
		method:        MethodDelete,
		needsCriteria: true,
		status:        http.StatusOK,
		exec:          execDelete,
	}, opts)
}

func execCreate(ctx context.Context, m types.Model, req *Request, opts Options, _ types.Criteria) (any, error) {
	records, many, err := payloadRecords(req.Payload)
	if err != nil {
		return nil, err
	}
	if opts.CredentialKey != "" {
		if v, ok := req.Credentials[opts.CredentialKey]; ok {
			for _, r := range records {
				r[opts.CredentialKey] = v
			}
		}
	}

	created, err := m.Create(ctx, records)
	if err != nil {
		return nil, err
	}
	if many {
		return created, nil
	}
	if len(created) == 0 {
		return nil, BadImplementation(MsgEmptyCreate)
	}
	return created[0], nil
}

func execUpdate(ctx context.Context, m types.Model, req *Request, _ Options, criteria types.Criteria) (any, error) {
	values, ok := asRecord(req.Payload)
	if !ok {
		return nil, BadData("payload must be an object")
	}

	updated, err := m.Update(ctx, criteria, values)
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		return nil, types.ErrNotFound
	}
	return updated[0], nil
}

func execGet(ctx context.Context, m types.Model, _ *Request, opts Options, criteria types.Criteria) (any, error) {
	if opts.UniqueID != "" {
		return m.FindOne(ctx, criteria)
	}

	found, err := m.Find(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, types.ErrNotFound
	}
	return found, nil
}

func execDelete(ctx context.Context, m types.Model, _ *Request, _ Options, criteria types.Criteria) (any, error) {
	destroyed, err := m.Destroy(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if len(destroyed) == 0 {
		return nil, types.ErrNotFound
	}

	pk := m.Definition().PrimaryKey()
	ids := make([]types.Record, 0, len(destroyed))
	for _, r := range destroyed {
		ids = append(ids, types.Record{pk: r[pk]})
	}
	if len(ids) == 1 {
		return ids[0], nil
	}
	return ids, nil
}

// payloadRecords copies payload into records the handler may modify.
// many reports whether payload was an array.
func payloadRecords(payload any) (records []types.Record, many bool, err error) {
	if r, ok := asRecord(payload); ok {
		return []types.Record{r}, false, nil
	}

	var items []any
	switch v := payload.(type) {
	case []any:
		items = v
	case []map[string]any:
		for _, m := range v {
			items = append(items, m)
		}
	case []types.Record:
		for _, r := range v {
			items = append(items, r)
		}
	default:
		return nil, false, BadData(MsgInvalidPayload)
	}
	if len(items) == 0 {
		return nil, false, BadData(MsgInvalidPayload)
	}

	records = make([]types.Record, 0, len(items))
	for _, item := range items {
		r, ok := asRecord(item)
		if !ok {
			return nil, false, BadData(MsgInvalidPayload)
		}
		records = append(records, r)
	}
	return records, true, nil
}

// asRecord returns a copy of v when it is an object.
func asRecord(v any) (types.Record, bool) {
	switch m := v.(type) {
	case map[string]any:
		return types.Record(m).Clone(), true
	case types.Record:
		return m.Clone(), true
	}
	return nil, false
}
