package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment does not
// leak into a test.
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"CONFIG_FILE", "HTTP_ADDR", "HTTP_REQUEST_TIMEOUT", "BILLING_ANCHOR_DAY", "BILLING_VAT_RATE",
		"BILLING_DATE_STYLE", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "CHAT_MAX_TOKENS",
		"CHAT_RATE_PER_MINUTE", "CHAT_RATE_BURST", "DOCUMENTS_PATH", "GOOGLE_CLOUD_PROJECT",
		"GOOGLE_CLOUD_LOCATION", "DOCUMENT_AI_PROCESSOR_ID", "DOCUMENT_AI_PROCESSOR_VERSION",
		"GOOGLE_SERVICE_ACCOUNT_KEY", "GOOGLE_SHEET_URL", "GOOGLE_SHEET_WORKSHEET",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_TIME_FORMAT", "LOG_OUTPUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.ChatEnabled())
	assert.False(t, cfg.ScanEnabled())
	assert.False(t, cfg.SheetsEnabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("HTTP_REQUEST_TIMEOUT", "3s")
	t.Setenv("BILLING_ANCHOR_DAY", "31")
	t.Setenv("BILLING_VAT_RATE", "0.08")
	t.Setenv("BILLING_DATE_STYLE", "dmy")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CHAT_RATE_BURST", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, 3*time.Second, cfg.HTTPRequestTimeout)
	assert.Equal(t, 31, cfg.AnchorDay)
	assert.Equal(t, 0.08, cfg.VATRate)
	assert.Equal(t, "dmy", cfg.DateStyle)
	assert.Equal(t, 2, cfg.ChatRateBurst)
	assert.True(t, cfg.ChatEnabled())
}

func TestLoadFileOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "telecalc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
anchor_day: 1
http_request_timeout: 20s
google_sheet_worksheet: Activations
documents:
  - id: tariffs
    category: tariffs
    title_ar: جدول الأسعار
    title_en: Tariff sheet
    url: https://example.com/tariffs.pdf
    pinned: true
`), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("BILLING_ANCHOR_DAY", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.AnchorDay, "environment wins over the file")
	assert.Equal(t, 20*time.Second, cfg.HTTPRequestTimeout)
	assert.Equal(t, "Activations", cfg.GoogleSheetWorksheet)
	assert.Equal(t, 0.16, cfg.VATRate)
	require.Len(t, cfg.Documents, 1)
	assert.Equal(t, "جدول الأسعار", cfg.Documents[0].TitleAR)
	assert.True(t, cfg.Documents[0].Pinned)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"BILLING_ANCHOR_DAY", "0"},
		{"BILLING_ANCHOR_DAY", "32"},
		{"BILLING_ANCHOR_DAY", "fifteen"},
		{"BILLING_VAT_RATE", "16"},
		{"BILLING_VAT_RATE", "-0.1"},
		{"BILLING_DATE_STYLE", "us"},
		{"HTTP_REQUEST_TIMEOUT", "soon"},
		{"HTTP_REQUEST_TIMEOUT", "-1s"},
		{"CHAT_RATE_PER_MINUTE", "0"},
		{"CHAT_RATE_BURST", "0"},
		{"CHAT_MAX_TOKENS", "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("anchor_day: [1, 2"), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestGetLoggerConfig(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "json"

	lc := cfg.GetLoggerConfig()
	assert.Equal(t, "json", lc.Format)
	assert.Equal(t, "info", lc.Level)
}

func TestGoogleCredentials(t *testing.T) {
	cfg := Default()
	creds, err := cfg.GoogleCredentials()
	require.NoError(t, err)
	assert.Nil(t, creds)

	cfg.GoogleServiceAccountKey = ` {"type":"service_account"}`
	creds, err = cfg.GoogleCredentials()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(creds))

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"service_account","project_id":"p"}`), 0o600))
	cfg.GoogleServiceAccountKey = path
	creds, err = cfg.GoogleCredentials()
	require.NoError(t, err)
	assert.Contains(t, string(creds), `"project_id":"p"`)

	cfg.GoogleServiceAccountKey = filepath.Join(t.TempDir(), "missing.json")
	_, err = cfg.GoogleCredentials()
	assert.ErrorContains(t, err, "GOOGLE_SERVICE_ACCOUNT_KEY")
}
