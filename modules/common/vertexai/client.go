package vertexai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"

	"pic2catalog-server/modules/common/gemini"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// LoadCredentials - explicit service account credentials.
// Order: credsJSON, then the file at credsPath; both empty returns nil (Application Default Credentials).
func LoadCredentials(credsJSON, credsPath string, logger *slog.Logger) (*auth.Credentials, error) {
	var data []byte
	switch {
	case credsJSON != "":
		logger.Info("✅ [VertexAI] Using VERTEXAI_CREDENTIALS_JSON from environment")
		data = []byte(credsJSON)
	case credsPath != "":
		logger.Info("✅ [VertexAI] Using credentials from file", "path", credsPath)
		fileData, err := os.ReadFile(credsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		data = fileData
	default:
		logger.Info("⚠️  [VertexAI] No explicit credentials found, using Application Default Credentials")
		return nil, nil
	}

	var probe map[string]any
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON credentials: %w", err)
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes:          []string{cloudPlatformScope},
		CredentialsJSON: data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	return creds, nil
}

// NewVertexAIClient - genai client bound to one project and location
func NewVertexAIClient(ctx context.Context, project, location string, creds *auth.Credentials) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:     project,
		Location:    location,
		Backend:     genai.BackendVertexAI,
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}
	return client, nil
}

// Dialer - opens a Vertex AI session per region. Safe for concurrent use.
type Dialer struct {
	project string
	creds   *auth.Credentials
	logger  *slog.Logger
}

// NewDialer - project must be non-empty; creds may be nil for ADC
func NewDialer(project string, creds *auth.Credentials, logger *slog.Logger) (*Dialer, error) {
	if project == "" {
		return nil, fmt.Errorf("vertex dialer: project is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dialer{project: project, creds: creds, logger: logger}, nil
}

func (d *Dialer) Dial(ctx context.Context, region string) (gemini.Session, error) {
	client, err := NewVertexAIClient(ctx, d.project, region, d.creds)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("🔌 [VertexAI] Session opened", "project", d.project, "location", region)
	return &session{client: client}, nil
}

type session struct {
	client *genai.Client
}

func (s *session) Generate(ctx context.Context, call *gemini.Call) (string, error) {
	result, err := s.client.Models.GenerateContent(ctx, call.Model, buildContents(call.Prompt), buildConfig(call))
	if err != nil {
		return "", err
	}
	text := result.Text()
	if text == "" {
		return "", gemini.ErrEmptyResponse
	}
	return text, nil
}

// buildContents - image part first, then the instruction
func buildContents(prompt gemini.Prompt) []*genai.Content {
	var parts []*genai.Part
	if data, mimeType, ok := prompt.Image(); ok {
		parts = append(parts, genai.NewPartFromBytes(data, mimeType))
	}
	parts = append(parts, genai.NewPartFromText(prompt.Text()))
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func buildConfig(call *gemini.Call) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		MaxOutputTokens:  call.Config.MaxOutputTokens,
		Temperature:      call.Config.Temperature,
		TopP:             call.Config.TopP,
		ResponseMIMEType: call.Config.ResponseMIMEType,
		ResponseSchema:   call.Schema,
		SafetySettings:   call.Safety,
	}
}
