package handler

import (
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Plugin identity reported to hosts.
const (
	PluginName    = "handler"
	PluginVersion = "1.0.0"
)

// Method names registered on a Host.
const (
	MethodCreate = PluginName + ".create"
	MethodUpdate = PluginName + ".update"
	MethodGet    = PluginName + ".get"
	MethodDelete = PluginName + ".delete"
)

// Logger receives handler failures. *slog.Logger satisfies it.
type Logger interface {
	Error(msg string, args ...any)
}

// Factory builds a Handler from per-route Options.
type Factory func(opts Options) Handler

// Host is the framework a Plugin registers on. It resolves models by name
// and keeps a registry of named methods.
type Host interface {
	types.ModelLookup
	RegisterMethod(name string, f Factory) error
}

// PluginOptions configures a Plugin.
type PluginOptions struct {
	// Logger receives every handler failure. Defaults to slog.Default().
	Logger Logger
}

// Plugin builds handlers bound to a model lookup and a logger.
type Plugin struct {
	models types.ModelLookup
	log    Logger
}

// New returns a Plugin resolving models through models.
func New(models types.ModelLookup, opts PluginOptions) *Plugin {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Plugin{models: models, log: log}
}

// Register creates a Plugin for host and registers its four factories under
// the Method* names.
func Register(host Host, opts PluginOptions) (*Plugin, error) {
	p := New(host, opts)
	for name, f := range p.Methods() {
		if err := host.RegisterMethod(name, f); err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
	}
	return p, nil
}

// Methods returns the plugin's factories keyed by method name.
func (p *Plugin) Methods() map[string]Factory {
	return map[string]Factory{
		MethodCreate: p.Create,
		MethodUpdate: p.Update,
		MethodGet:    p.Get,
		MethodDelete: p.Delete,
	}
}
