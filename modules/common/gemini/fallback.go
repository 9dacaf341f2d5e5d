package gemini

import (
	"context"
	"log/slog"
)

// FallbackPolicy - tries regions in fixed priority order and stops at the first success.
// Every failure, quota or not, falls through to the next region.
type FallbackPolicy struct {
	Regions []string
	Logger  *slog.Logger
}

// Run - attempt is called once per region until one succeeds
func (p FallbackPolicy) Run(ctx context.Context, attempt func(ctx context.Context, region string) (string, error)) (string, error) {
	if len(p.Regions) == 0 {
		return "", ErrNoRegions
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var failures []*RegionError
	for _, region := range p.Regions {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := attempt(ctx, region)
		if err == nil {
			if len(failures) > 0 {
				logger.Info("✅ [Gemini Fallback] Succeeded after fallback", "region", region, "failed_regions", len(failures))
			}
			return text, nil
		}

		regionErr := &RegionError{Region: region, Quota: IsResourceExhausted(err), Err: err}
		failures = append(failures, regionErr)

		if regionErr.Quota {
			logger.Warn("⚠️  [Gemini Fallback] Region exhausted, trying next region", "region", region, "error", err)
		} else {
			logger.Warn("⚠️  [Gemini Fallback] Unexpected error with region", "region", region, "error", err)
		}
	}

	regions := make([]string, len(p.Regions))
	copy(regions, p.Regions)
	return "", &AllRegionsExhaustedError{
		Regions: regions,
		Errors:  failures,
		Last:    failures[len(failures)-1],
	}
}
