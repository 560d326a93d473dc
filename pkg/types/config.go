package types

import "errors"

// Config holds backend selection and parameters for Store.Attach.
type Config struct {
	Backend  string `json:"backend" yaml:"backend"`
	DataDir  string `json:"data_dir" yaml:"data_dir"`
	MongoURI string `json:"mongo_uri" yaml:"mongo_uri"`
	Database string `json:"database" yaml:"database"`

	// Models maps model names to their attribute definitions. It is loaded
	// from the models file rather than config.yaml.
	Models map[string]Definition `json:"-" yaml:"-"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrNoModels       = errors.New("at least one model must be defined")
	ErrMongoURIEmpty  = errors.New("mongo backend requires mongo_uri")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
	BackendMemory: true,
	BackendMongo:  true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendMongo && c.MongoURI == "" {
		return ErrMongoURIEmpty
	}
	if len(c.Models) == 0 {
		return ErrNoModels
	}
	return nil
}
