package handler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crudkit/internal/memory"
	"github.com/mesh-intelligence/crudkit/pkg/handler"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// testHost is a minimal Host over the memory backend.
type testHost struct {
	*memory.Backend
	methods map[string]handler.Factory
}

func (h *testHost) RegisterMethod(name string, f handler.Factory) error {
	if _, ok := h.methods[name]; ok {
		return fmt.Errorf("method %q already registered", name)
	}
	h.methods[name] = f
	return nil
}

type logEntry struct {
	msg  string
	args []any
}

// err returns the value logged under the "error" key.
func (e logEntry) err() error {
	for i := 0; i+1 < len(e.args); i += 2 {
		if e.args[i] == "error" {
			err, _ := e.args[i+1].(error)
			return err
		}
	}
	return nil
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{msg: msg, args: args})
}

type fixture struct {
	host    *testHost
	log     *recordingLogger
	plugin  *handler.Plugin
	backend *memory.Backend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	b := memory.NewBackend()
	require.NoError(t, b.Attach(types.Config{
		Backend: types.BackendMemory,
		Models: map[string]types.Definition{
			"test": {
				"stuff": {Type: types.TypeString},
				"user":  {Type: types.TypeInteger},
			},
		},
	}))
	t.Cleanup(func() { b.Detach() })

	host := &testHost{Backend: b, methods: map[string]handler.Factory{}}
	log := &recordingLogger{}
	p, err := handler.Register(host, handler.PluginOptions{Logger: log})
	require.NoError(t, err)

	return &fixture{host: host, log: log, plugin: p, backend: b}
}

// seed stores records directly and resets the call counter baseline.
func (f *fixture) seed(t *testing.T, records ...types.Record) int {
	t.Helper()
	m, err := f.backend.GetModel("test")
	require.NoError(t, err)
	_, err = m.Create(context.Background(), records)
	require.NoError(t, err)
	return f.backend.Calls()
}

func (f *fixture) call(method string, opts handler.Options, req *handler.Request) *handler.Response {
	resp := &handler.Response{}
	f.host.methods[method](opts)(context.Background(), req, resp)
	return resp
}

var errStore = errors.New("error")
