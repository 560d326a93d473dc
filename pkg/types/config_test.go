package types

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	models := map[string]Definition{"test": {"stuff": {Type: TypeString}}}

	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty backend returns ErrBackendEmpty",
			config:  Config{Backend: "", DataDir: "/tmp/data", Models: models},
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "unknown backend returns ErrBackendUnknown",
			config:  Config{Backend: "postgres", DataDir: "/tmp/data", Models: models},
			wantErr: ErrBackendUnknown,
		},
		{
			name:    "mongo without uri returns ErrMongoURIEmpty",
			config:  Config{Backend: BackendMongo, Models: models},
			wantErr: ErrMongoURIEmpty,
		},
		{
			name:    "no models returns ErrNoModels",
			config:  Config{Backend: BackendSQLite, DataDir: "/tmp/data"},
			wantErr: ErrNoModels,
		},
		{
			name:    "valid sqlite config",
			config:  Config{Backend: BackendSQLite, DataDir: "/tmp/data", Models: models},
			wantErr: nil,
		},
		{
			name:    "memory with empty DataDir is valid",
			config:  Config{Backend: BackendMemory, Models: models},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}
