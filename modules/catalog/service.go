package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"pic2catalog-server/modules/common/gemini"
)

// Sampling temperatures per task
const (
	CatalogTemperature = 0.1
	ReviewsTemperature = 0.7
	SummaryTemperature = 0.3
)

// Pipeline stages reported to progress callbacks
const (
	StageCatalog = "catalog"
	StageReviews = "reviews"
	StageSummary = "summary"
	StageDone    = "done"
)

const (
	taskCatalog = "catalog"
	taskReviews = "reviews"
	taskSummary = "summary"
)

// Generator - anything that turns a request into model text. *gemini.RegionClient in production.
type Generator interface {
	Generate(ctx context.Context, req gemini.GenerationRequest) (string, error)
}

// ProgressFunc - called when the pipeline enters a stage
type ProgressFunc func(stage string)

// Service - catalog, review and summary generation on top of a Generator
type Service struct {
	gen    Generator
	logger *slog.Logger
	now    func() time.Time
}

func NewService(gen Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{gen: gen, logger: logger, now: time.Now}
}

func withTemperature(t float32) *gemini.GenerationConfig {
	return &gemini.GenerationConfig{Temperature: genai.Ptr(t)}
}

// GenerateCatalog - extracts a catalog entry from a product photo
func (s *Service) GenerateCatalog(ctx context.Context, image []byte, mimeType string) (*CatalogEntry, error) {
	req := gemini.GenerationRequest{
		Prompt: gemini.NewImagePrompt(image, mimeType, BuildCatalogPrompt()),
		Schema: CatalogSchema(),
		Config: withTemperature(CatalogTemperature),
	}

	var entry CatalogEntry
	if err := s.run(ctx, taskCatalog, req, &entry); err != nil {
		return nil, err
	}

	s.logger.Info("📦 [Catalog] Catalog entry generated",
		"product", entry.ProductName, "category", entry.Category, "features", len(entry.Features))
	return &entry, nil
}

// GenerateReviewSet - five synthetic reviews for entry
func (s *Service) GenerateReviewSet(ctx context.Context, entry *CatalogEntry) (*ReviewSet, error) {
	req := gemini.GenerationRequest{
		Prompt: gemini.NewTextPrompt(BuildReviewsPrompt(*entry, s.now())),
		Schema: ReviewsSchema(),
		Config: withTemperature(ReviewsTemperature),
	}

	var set ReviewSet
	if err := s.run(ctx, taskReviews, req, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// SummarizeReviews - digest of a review set
func (s *Service) SummarizeReviews(ctx context.Context, set *ReviewSet) (*ReviewSummary, error) {
	prompt, err := BuildSummaryPrompt(*set)
	if err != nil {
		return nil, err
	}

	req := gemini.GenerationRequest{
		Prompt: gemini.NewTextPrompt(prompt),
		Schema: SummarySchema(),
		Config: withTemperature(SummaryTemperature),
	}

	var summary ReviewSummary
	if err := s.run(ctx, taskSummary, req, &summary); err != nil {
		return nil, err
	}
	if summary.Criticisms == nil {
		summary.Criticisms = []string{}
	}
	return &summary, nil
}

// GenerateReviews - review set followed by its summary
func (s *Service) GenerateReviews(ctx context.Context, entry *CatalogEntry, progress ProgressFunc) (*ReviewsInfo, error) {
	report(progress, StageReviews)
	set, err := s.GenerateReviewSet(ctx, entry)
	if err != nil {
		return nil, err
	}

	report(progress, StageSummary)
	summary, err := s.SummarizeReviews(ctx, set)
	if err != nil {
		return nil, err
	}

	info := &ReviewsInfo{Reviews: set.Reviews, Summary: *summary}
	s.logger.Info("⭐ [Catalog] Reviews generated",
		"product", entry.ProductName, "reviews", len(info.Reviews), "average_rating", info.AverageRating())
	return info, nil
}

// Generate - full pipeline: catalog, then reviews and summary.
// A catalog that fails validation stops the pipeline before any review call.
func (s *Service) Generate(ctx context.Context, image []byte, mimeType string, progress ProgressFunc) (*ProductInfo, error) {
	start := s.now()

	report(progress, StageCatalog)
	entry, err := s.GenerateCatalog(ctx, image, mimeType)
	if err != nil {
		return nil, err
	}

	reviews, err := s.GenerateReviews(ctx, entry, progress)
	if err != nil {
		return nil, err
	}

	report(progress, StageDone)
	s.logger.Info("✅ [Catalog] Product info complete", "product", entry.ProductName, "elapsed", s.now().Sub(start))
	return &ProductInfo{CatalogInfo: *entry, ReviewsInfo: *reviews}, nil
}

// run - one generation call, repaired, decoded into out and validated
func (s *Service) run(ctx context.Context, task string, req gemini.GenerationRequest, out any) error {
	text, err := s.gen.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("%s generation failed: %w", task, err)
	}

	if err := ParseResponse(s.logger, task, text, out); err != nil {
		return err
	}

	if err := Validate(task, out); err != nil {
		s.logger.Warn("⚠️  [Catalog] Model response failed validation", "task", task, "error", err)
		return err
	}
	return nil
}

func report(progress ProgressFunc, stage string) {
	if progress != nil {
		progress(stage)
	}
}
