package settings_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/retention/settings"
)

func TestConfig_Merge(t *testing.T) {
	cfg := settings.DefaultConfig()
	assert.Equal(t, settings.BackendMemory, cfg.Backend)

	cfg.Merge(&settings.Config{Backend: settings.BackendBadger, Path: "/var/lib/retention", SyncWrites: true})
	assert.Equal(t, settings.BackendBadger, cfg.Backend)
	assert.Equal(t, "/var/lib/retention", cfg.Path)
	assert.True(t, cfg.SyncWrites)

	cfg.Merge(&settings.Config{})
	assert.Equal(t, settings.BackendBadger, cfg.Backend, "zero values keep existing")
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     settings.Config
		wantErr error
	}{
		{name: "memory", cfg: settings.Config{Backend: settings.BackendMemory}},
		{name: "default backend", cfg: settings.Config{}},
		{name: "file", cfg: settings.Config{Backend: settings.BackendFile, Path: filepath.Join(dir, "files")}},
		{name: "badger", cfg: settings.Config{Backend: settings.BackendBadger, Path: filepath.Join(dir, "badger")}},
		{name: "file without path", cfg: settings.Config{Backend: settings.BackendFile}, wantErr: settings.ErrMissingPath},
		{name: "badger without path", cfg: settings.Config{Backend: settings.BackendBadger}, wantErr: settings.ErrMissingPath},
		{name: "unknown", cfg: settings.Config{Backend: "s3"}, wantErr: settings.ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := settings.NewStore(&tt.cfg, nil)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			_, err = store.List(context.Background())
			assert.NoError(t, err)
		})
	}
}
