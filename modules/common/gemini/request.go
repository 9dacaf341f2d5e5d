package gemini

import (
	"errors"

	"google.golang.org/genai"
)

const (
	// DefaultModel - Vertex AI model used when none is configured
	DefaultModel = "gemini-2.0-flash-001"

	// DefaultImageMIMEType - assigned to image prompts the caller did not tag
	DefaultImageMIMEType = "image/jpeg"

	MIMETypeJSON = "application/json"
	MIMETypeText = "text/plain"
)

// DefaultRegions - Vertex AI locations in fallback priority order
var DefaultRegions = []string{
	"us-central1",
	"europe-west2",
	"europe-west3",
	"asia-northeast1",
	"australia-southeast1",
	"asia-south1",
}

var ErrEmptyImage = errors.New("image prompt requires non-empty image bytes")

// Prompt - text prompt or (image, text) pair. Immutable once constructed.
type Prompt struct {
	image    []byte
	mimeType string
	text     string
	hasImage bool
}

// NewTextPrompt - plain text prompt
func NewTextPrompt(text string) Prompt {
	return Prompt{text: text}
}

// NewImagePrompt - ordered (image bytes, instruction text) pair.
// An empty mimeType is replaced with DefaultImageMIMEType.
func NewImagePrompt(image []byte, mimeType, text string) Prompt {
	if mimeType == "" {
		mimeType = DefaultImageMIMEType
	}
	data := make([]byte, len(image))
	copy(data, image)
	return Prompt{image: data, mimeType: mimeType, text: text, hasImage: true}
}

func (p Prompt) Text() string { return p.text }

// Image - image payload and MIME type; ok is false for text prompts
func (p Prompt) Image() (data []byte, mimeType string, ok bool) {
	return p.image, p.mimeType, p.hasImage
}

func (p Prompt) validate() error {
	if p.hasImage && len(p.image) == 0 {
		return ErrEmptyImage
	}
	return nil
}

// GenerationConfig - sampling and output settings. Zero values mean "use the default".
type GenerationConfig struct {
	MaxOutputTokens  int32
	Temperature      *float32
	TopP             *float32
	ResponseMIMEType string
}

// DefaultGenerationConfig - 8192 tokens, temperature 0.1, top-p 0.95, JSON output
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxOutputTokens:  8192,
		Temperature:      genai.Ptr[float32](0.1),
		TopP:             genai.Ptr[float32](0.95),
		ResponseMIMEType: MIMETypeJSON,
	}
}

// merge - fields set on override win over c
func (c GenerationConfig) merge(override *GenerationConfig) GenerationConfig {
	out := c
	if override == nil {
		return out
	}
	if override.MaxOutputTokens > 0 {
		out.MaxOutputTokens = override.MaxOutputTokens
	}
	if override.Temperature != nil {
		out.Temperature = genai.Ptr(*override.Temperature)
	}
	if override.TopP != nil {
		out.TopP = genai.Ptr(*override.TopP)
	}
	if override.ResponseMIMEType != "" {
		out.ResponseMIMEType = override.ResponseMIMEType
	}
	return out
}

// GenerationRequest - one model invocation as seen by callers
type GenerationRequest struct {
	Prompt Prompt
	Schema *genai.Schema
	Config *GenerationConfig
}

// Call - fully resolved request handed to a Session for one region
type Call struct {
	Model  string
	Region string
	Prompt Prompt
	Config GenerationConfig
	Schema *genai.Schema
	Safety []*genai.SafetySetting
}

// SafetySettings - BLOCK_NONE for the four harm categories.
// Returns a fresh slice on every call.
func SafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHateSpeech,
		genai.HarmCategoryDangerousContent,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryHarassment,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}
