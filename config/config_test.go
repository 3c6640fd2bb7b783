package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	names := make([]string, 0, len(richErr.ValidationErrors))
	for _, fe := range richErr.ValidationErrors {
		names = append(names, fe.Field)
	}
	return names
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"WORKSHOP_AUTH_SIGNING_KEY": testSigningKey,
	})
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, BackendLocal, cfg.Backend)
	assert.Equal(t, ":8572", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Minute, cfg.HTTP.VisitorTTL)
	assert.Equal(t, "file:workshop.db?cache=shared", cfg.Database.DSN)
	assert.Equal(t, "workshop", cfg.Auth.Issuer)
	assert.Equal(t, "authenticated", cfg.Auth.Audience)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 720*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, 5, cfg.Auth.MaxLoginAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Auth.CoolDown)
	assert.False(t, cfg.Auth.UseHashid)
	assert.Equal(t, 10*time.Second, cfg.Store.OperationTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, LogFormatText, cfg.Log.Format)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"WORKSHOP_ENV":                     "Production",
		"WORKSHOP_BACKEND":                 "REST",
		"WORKSHOP_BACKEND_URL":             "https://example.supabase.co",
		"WORKSHOP_BACKEND_ANON_KEY":        "anon",
		"WORKSHOP_HTTP_ADDR":               "127.0.0.1:9000",
		"WORKSHOP_STORE_OPERATION_TIMEOUT": "3s",
		"WORKSHOP_AUTH_USE_HASHID":         "true",
		"WORKSHOP_LOG_FORMAT":              "json",
		"WORKSHOP_LOG_LEVEL":               "debug",
	})
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, BackendREST, cfg.Backend)
	assert.Equal(t, "https://example.supabase.co", cfg.Hosted.URL)
	assert.Equal(t, "anon", cfg.Hosted.AnonKey)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.Store.OperationTimeout)
	assert.True(t, cfg.Auth.UseHashid)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
}

func TestLoadReportsMissingValuesTogether(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		fields  []string
	}{
		{
			name:    "local without signing key",
			environ: map[string]string{},
			fields:  []string{"AUTH_SIGNING_KEY"},
		},
		{
			name:    "rest without url and key",
			environ: map[string]string{"WORKSHOP_BACKEND": "rest"},
			fields:  []string{"BACKEND_URL", "BACKEND_ANON_KEY"},
		},
		{
			name: "short signing key and bad enums",
			environ: map[string]string{
				"WORKSHOP_AUTH_SIGNING_KEY": "short",
				"WORKSHOP_ENV":              "qa",
				"WORKSHOP_LOG_FORMAT":       "xml",
			},
			fields: []string{"AUTH_SIGNING_KEY", "ENV", "LOG_FORMAT"},
		},
		{
			name: "refresh shorter than access",
			environ: map[string]string{
				"WORKSHOP_AUTH_SIGNING_KEY": testSigningKey,
				"WORKSHOP_AUTH_TOKEN_TTL":   "2h",
				"WORKSHOP_AUTH_REFRESH_TTL": "1h",
			},
			fields: []string{"AUTH_REFRESH_TTL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.environ)
			require.Error(t, err)
			assert.True(t, goerrors.IsValidation(err))
			assert.ElementsMatch(t, tt.fields, fieldNames(t, err))
		})
	}
}

func TestLoadRejectsUnparsableValues(t *testing.T) {
	_, err := LoadFrom(map[string]string{
		"WORKSHOP_AUTH_SIGNING_KEY": testSigningKey,
		"WORKSHOP_AUTH_TOKEN_TTL":   "soon",
	})
	require.Error(t, err)
	assert.True(t, goerrors.IsValidation(err))
}

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer

	LogConfig{Level: "warn", Format: LogFormatJSON}.NewLogger(&buf).Info("hidden")
	assert.Empty(t, buf.String())

	LogConfig{Level: "warn", Format: LogFormatJSON}.NewLogger(&buf).Warn("shown", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)

	buf.Reset()
	LogConfig{Level: "info", Format: LogFormatText}.NewLogger(&buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
