// Package studio dials the Gemini API with API keys instead of Vertex AI regions.
// Each key is one fallback endpoint, named "key-1", "key-2", ... in configured order.
package studio

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	legacy "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/genai"

	"pic2catalog-server/modules/common/gemini"
)

const keyPrefix = "key-"

// Dialer - resolves "key-N" endpoint names to API keys
type Dialer struct {
	keys   []string
	opts   []option.ClientOption
	logger *slog.Logger
}

// NewDialer - opts are applied to every client after the API key
func NewDialer(apiKeys []string, logger *slog.Logger, opts ...option.ClientOption) (*Dialer, error) {
	if len(apiKeys) == 0 {
		return nil, fmt.Errorf("no API keys provided")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dialer{keys: append([]string(nil), apiKeys...), opts: opts, logger: logger}, nil
}

// Endpoints - fallback names for the configured keys, in order
func (d *Dialer) Endpoints() []string {
	names := make([]string, len(d.keys))
	for i := range d.keys {
		names[i] = keyPrefix + strconv.Itoa(i+1)
	}
	return names
}

func (d *Dialer) Dial(ctx context.Context, endpoint string) (gemini.Session, error) {
	idx, err := strconv.Atoi(strings.TrimPrefix(endpoint, keyPrefix))
	if err != nil || !strings.HasPrefix(endpoint, keyPrefix) || idx < 1 || idx > len(d.keys) {
		return nil, fmt.Errorf("unknown endpoint %q", endpoint)
	}

	opts := append([]option.ClientOption{option.WithAPIKey(d.keys[idx-1])}, d.opts...)
	client, err := legacy.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	d.logger.Debug("🔑 [Gemini API] Session opened", "endpoint", endpoint)
	return &session{client: client}, nil
}

type session struct {
	client *legacy.Client
}

func (s *session) Generate(ctx context.Context, call *gemini.Call) (string, error) {
	model := s.client.GenerativeModel(call.Model)
	configureModel(model, call)

	resp, err := model.GenerateContent(ctx, buildParts(call.Prompt)...)
	if err != nil {
		return "", err
	}
	text := responseText(resp)
	if text == "" {
		return "", gemini.ErrEmptyResponse
	}
	return text, nil
}

// Close releases the client once every attempt in this endpoint is done
func (s *session) Close() error {
	return s.client.Close()
}

func configureModel(model *legacy.GenerativeModel, call *gemini.Call) {
	cfg := call.Config
	if cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(cfg.MaxOutputTokens)
	}
	if cfg.Temperature != nil {
		model.SetTemperature(*cfg.Temperature)
	}
	if cfg.TopP != nil {
		model.SetTopP(*cfg.TopP)
	}
	model.ResponseMIMEType = cfg.ResponseMIMEType
	model.ResponseSchema = convertSchema(call.Schema)

	model.SafetySettings = nil
	for _, s := range call.Safety {
		category, ok := harmCategories[s.Category]
		if !ok {
			continue
		}
		model.SafetySettings = append(model.SafetySettings, &legacy.SafetySetting{
			Category:  category,
			Threshold: legacy.HarmBlockNone,
		})
	}
}

func buildParts(prompt gemini.Prompt) []legacy.Part {
	var parts []legacy.Part
	if data, mimeType, ok := prompt.Image(); ok {
		parts = append(parts, legacy.Blob{MIMEType: mimeType, Data: data})
	}
	return append(parts, legacy.Text(prompt.Text()))
}

func responseText(resp *legacy.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(legacy.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

var harmCategories = map[genai.HarmCategory]legacy.HarmCategory{
	genai.HarmCategoryHateSpeech:       legacy.HarmCategoryHateSpeech,
	genai.HarmCategoryDangerousContent: legacy.HarmCategoryDangerousContent,
	genai.HarmCategorySexuallyExplicit: legacy.HarmCategorySexuallyExplicit,
	genai.HarmCategoryHarassment:       legacy.HarmCategoryHarassment,
}

var schemaTypes = map[genai.Type]legacy.Type{
	genai.TypeString:  legacy.TypeString,
	genai.TypeNumber:  legacy.TypeNumber,
	genai.TypeInteger: legacy.TypeInteger,
	genai.TypeBoolean: legacy.TypeBoolean,
	genai.TypeArray:   legacy.TypeArray,
	genai.TypeObject:  legacy.TypeObject,
}

// convertSchema - maps the Vertex schema onto the Gemini API schema.
// Length bounds and property ordering have no counterpart there and are dropped;
// responses are validated after parsing either way.
func convertSchema(s *genai.Schema) *legacy.Schema {
	if s == nil {
		return nil
	}
	out := &legacy.Schema{
		Type:        schemaTypes[s.Type],
		Format:      s.Format,
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
		Items:       convertSchema(s.Items),
	}
	if s.Nullable != nil {
		out.Nullable = *s.Nullable
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*legacy.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = convertSchema(prop)
		}
	}
	return out
}
