package studio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	legacy "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/genai"

	"pic2catalog-server/modules/common/gemini"
)

func TestEndpoints(t *testing.T) {
	d, err := NewDialer([]string{"a", "b", "c"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := d.Endpoints()
	want := []string{"key-1", "key-2", "key-3"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("endpoint %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDialUnknownEndpoint(t *testing.T) {
	d, _ := NewDialer([]string{"a"}, nil)
	for _, name := range []string{"key-0", "key-2", "us-central1", "key-x"} {
		if _, err := d.Dial(context.Background(), name); err == nil {
			t.Errorf("Dial(%q) should fail", name)
		}
	}
}

func TestNewDialerRequiresKeys(t *testing.T) {
	if _, err := NewDialer(nil, nil); err == nil {
		t.Errorf("expected error without keys")
	}
}

func TestSessionSurvivesRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`))
			return
		}
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"ok\":true}"}]}}]}`))
	}))
	defer srv.Close()

	d, err := NewDialer([]string{"k"}, nil, option.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	client, err := gemini.NewRegionClient(d, gemini.Options{
		Regions: d.Endpoints(),
		Retry: &gemini.RetryPolicy{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
			Multiplier:      2,
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := client.Generate(context.Background(), gemini.GenerationRequest{Prompt: gemini.NewTextPrompt("hello")})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("got %q", got)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("server saw %d calls, want 2", n)
	}
}

func TestConvertSchema(t *testing.T) {
	src := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name": {Type: genai.TypeString},
			"tags": {
				Type:     genai.TypeArray,
				Items:    &genai.Schema{Type: genai.TypeString},
				MinItems: genai.Ptr[int64](3),
			},
			"stars": {Type: genai.TypeInteger},
		},
		Required: []string{"name"},
	}

	got := convertSchema(src)
	if got.Type != legacy.TypeObject || len(got.Properties) != 3 {
		t.Fatalf("unexpected root %+v", got)
	}
	if got.Properties["tags"].Type != legacy.TypeArray || got.Properties["tags"].Items.Type != legacy.TypeString {
		t.Errorf("array not converted: %+v", got.Properties["tags"])
	}
	if got.Properties["stars"].Type != legacy.TypeInteger {
		t.Errorf("integer not converted")
	}
	if len(got.Required) != 1 || got.Required[0] != "name" {
		t.Errorf("required = %v", got.Required)
	}
	if convertSchema(nil) != nil {
		t.Errorf("nil schema should stay nil")
	}
}

func TestBuildParts(t *testing.T) {
	parts := buildParts(gemini.NewImagePrompt([]byte{1}, "", "text"))
	if len(parts) != 2 {
		t.Fatalf("got %d parts", len(parts))
	}
	blob, ok := parts[0].(legacy.Blob)
	if !ok || blob.MIMEType != gemini.DefaultImageMIMEType {
		t.Errorf("first part = %#v", parts[0])
	}
	if text, ok := parts[1].(legacy.Text); !ok || string(text) != "text" {
		t.Errorf("second part = %#v", parts[1])
	}
}

func TestConfigureModel(t *testing.T) {
	model := &legacy.GenerativeModel{}
	call := &gemini.Call{
		Config: gemini.DefaultGenerationConfig(),
		Schema: &genai.Schema{Type: genai.TypeObject},
		Safety: gemini.SafetySettings(),
	}

	configureModel(model, call)

	if model.ResponseMIMEType != gemini.MIMETypeJSON || model.ResponseSchema == nil {
		t.Errorf("output settings not applied")
	}
	if model.Temperature == nil || *model.Temperature != 0.1 {
		t.Errorf("temperature = %v", model.Temperature)
	}
	if len(model.SafetySettings) != 4 {
		t.Errorf("got %d safety settings", len(model.SafetySettings))
	}
}

func TestResponseText(t *testing.T) {
	resp := &legacy.GenerateContentResponse{
		Candidates: []*legacy.Candidate{{
			Content: &legacy.Content{Parts: []legacy.Part{legacy.Text(`{"a":`), legacy.Text(`1}`)}},
		}},
	}
	if got := responseText(resp); got != `{"a":1}` {
		t.Errorf("got %q", got)
	}
	if responseText(&legacy.GenerateContentResponse{}) != "" {
		t.Errorf("empty response should give empty text")
	}
}
