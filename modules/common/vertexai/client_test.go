package vertexai

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/genai"

	"pic2catalog-server/modules/common/gemini"
)

func TestBuildContentsImageFirst(t *testing.T) {
	prompt := gemini.NewImagePrompt([]byte{0x89, 0x50}, "image/png", "describe it")

	contents := buildContents(prompt)
	if len(contents) != 1 {
		t.Fatalf("got %d contents", len(contents))
	}
	parts := contents[0].Parts
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "image/png" || len(parts[0].InlineData.Data) != 2 {
		t.Errorf("first part should be the image, got %+v", parts[0])
	}
	if parts[1].Text != "describe it" {
		t.Errorf("second part = %q", parts[1].Text)
	}
	if contents[0].Role != string(genai.RoleUser) {
		t.Errorf("role = %q", contents[0].Role)
	}
}

func TestBuildContentsText(t *testing.T) {
	contents := buildContents(gemini.NewTextPrompt("hi"))
	if len(contents[0].Parts) != 1 || contents[0].Parts[0].Text != "hi" {
		t.Errorf("unexpected parts %+v", contents[0].Parts)
	}
}

func TestBuildConfig(t *testing.T) {
	schema := &genai.Schema{Type: genai.TypeObject}
	call := &gemini.Call{
		Config: gemini.DefaultGenerationConfig(),
		Schema: schema,
		Safety: gemini.SafetySettings(),
	}

	cfg := buildConfig(call)
	if cfg.MaxOutputTokens != 8192 || *cfg.Temperature != 0.1 || *cfg.TopP != 0.95 {
		t.Errorf("sampling settings not carried: %+v", cfg)
	}
	if cfg.ResponseMIMEType != gemini.MIMETypeJSON || cfg.ResponseSchema != schema {
		t.Errorf("output settings not carried")
	}
	if len(cfg.SafetySettings) != 4 {
		t.Errorf("got %d safety settings", len(cfg.SafetySettings))
	}
}

func TestLoadCredentials(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	creds, err := LoadCredentials("", "", logger)
	if err != nil || creds != nil {
		t.Errorf("no explicit credentials should mean ADC, got %v %v", creds, err)
	}

	if _, err := LoadCredentials("{not json", "", logger); err == nil {
		t.Errorf("expected error for invalid JSON")
	}

	if _, err := LoadCredentials("", filepath.Join(t.TempDir(), "missing.json"), logger); err == nil {
		t.Errorf("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("[]x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCredentials("", path, logger); err == nil {
		t.Errorf("expected error for invalid file contents")
	}
}

func TestNewDialerRequiresProject(t *testing.T) {
	if _, err := NewDialer("", nil, nil); err == nil {
		t.Errorf("expected error without project")
	}
	if _, err := NewDialer("p", nil, nil); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
