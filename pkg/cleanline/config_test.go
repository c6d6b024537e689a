package cleanline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/cleanline/pkg/quote"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cleanline.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("CLEANLINE_TEST_TOKEN", "secret-token")
	path := writeConfig(t, `
transports:
  provider: twilio
  settings:
    auth_token: ${CLEANLINE_TEST_TOKEN}
vendors:
  llm:
    provider: mock
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Business.Name != "HyperClean" {
		t.Fatalf("business name = %q", cfg.Business.Name)
	}
	if cfg.Business.DefaultRegion != quote.DefaultRegion {
		t.Fatalf("default region = %q", cfg.Business.DefaultRegion)
	}
	if cfg.Audio.Store != "fs" || cfg.Completion.VoiceMaxSentences != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Privacy.RedactPII {
		t.Fatalf("expected redaction on by default")
	}
	if got := cfg.Transports.Settings["auth_token"]; got != "secret-token" {
		t.Fatalf("auth_token = %v", got)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]string{
		"missing transport": `
vendors:
  llm:
    provider: mock
`,
		"missing llm": `
transports:
  provider: mock
`,
		"postgres without dsn": `
transports:
  provider: mock
vendors:
  llm:
    provider: mock
audio:
  store: postgres
`,
		"bad store": `
transports:
  provider: mock
vendors:
  llm:
    provider: mock
audio:
  store: s3
`,
		"unknown service": `
transports:
  provider: mock
vendors:
  llm:
    provider: mock
business:
  regions:
    north:
      premium: 50
`,
		"non-positive price": `
transports:
  provider: mock
vendors:
  llm:
    provider: mock
business:
  regions:
    north:
      standard: 0
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestPricesMergeRegions(t *testing.T) {
	cfg := Config{Business: BusinessConfig{Regions: map[string]map[string]int{
		"North": {"standard": 110, "DEEP": 190},
	}}}
	table := cfg.Prices()
	row, ok := table["north"]
	if !ok {
		t.Fatalf("north region missing: %v", table)
	}
	if row[quote.Standard] != 110 || row[quote.Deep] != 190 {
		t.Fatalf("north prices = %v", row)
	}
	if _, ok := table[quote.DefaultRegion]; !ok {
		t.Fatalf("built-in regions should survive the merge")
	}
	if amount, ok := table.Lookup(" North ", quote.Deep); !ok || amount != 190 {
		t.Fatalf("Lookup(North, deep) = %d, %v; want 190", amount, ok)
	}
}

func TestProviderRegistry(t *testing.T) {
	r := DefaultProviderRegistry()
	cfg := Config{}
	cfg.Vendors.LLM.Settings = map[string]any{"response": "hi"}

	if _, err := r.BuildLLM("Mock", cfg); err != nil {
		t.Fatalf("mock llm: %v", err)
	}
	if _, err := r.BuildLLM("nope", cfg); err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("expected unregistered error, got %v", err)
	}
	synth, err := r.BuildTTS("none", cfg)
	if err != nil || synth != nil {
		t.Fatalf("disabled tts = %v, %v", synth, err)
	}
	stt, err := r.BuildSTT("", cfg)
	if err != nil || stt != nil {
		t.Fatalf("disabled stt = %v, %v", stt, err)
	}

	cfg.Vendors.TTS.Settings = map[string]any{"voice_id": "v1"}
	if _, err := r.BuildTTS("elevenlabs", cfg); err == nil {
		t.Fatalf("expected missing api_key error")
	}
	cfg.Vendors.LLM.Settings = map[string]any{"unexpected": true}
	if _, err := r.BuildLLM("mock", cfg); err == nil {
		t.Fatalf("expected unknown key error")
	}
}
