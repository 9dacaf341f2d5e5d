package gemini

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrResourceExhausted - quota or rate limit hit in a region
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrEmptyResponse - model returned no text (blocked or no candidates)
	ErrEmptyResponse = errors.New("empty response from model")

	ErrNoRegions = errors.New("no regions configured")
)

// TransientCallError - a call that kept failing after every retry attempt in one region
type TransientCallError struct {
	Attempts int
	Err      error
}

func (e *TransientCallError) Error() string {
	return fmt.Sprintf("call failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransientCallError) Unwrap() error { return e.Err }

// RegionError - failure of one region; Quota marks resource exhaustion
type RegionError struct {
	Region string
	Quota  bool
	Err    error
}

func (e *RegionError) Error() string {
	if e.Quota {
		return fmt.Sprintf("region %s exhausted: %v", e.Region, e.Err)
	}
	return fmt.Sprintf("region %s failed: %v", e.Region, e.Err)
}

func (e *RegionError) Unwrap() error { return e.Err }

// AllRegionsExhaustedError - every region failed. Unwrap returns the last region's error.
type AllRegionsExhaustedError struct {
	Regions []string
	Errors  []*RegionError
	Last    error
}

func (e *AllRegionsExhaustedError) Error() string {
	return fmt.Sprintf("all %d regions failed, last error: %v", len(e.Regions), e.Last)
}

func (e *AllRegionsExhaustedError) Unwrap() error { return e.Last }

// IsResourceExhausted - quota / rate-limit classification across both SDKs
func IsResourceExhausted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrResourceExhausted) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code == http.StatusTooManyRequests || apiErrPtr.Status == "RESOURCE_EXHAUSTED"
	}

	var gaxErr *apierror.APIError
	if errors.As(err, &gaxErr) {
		if gaxErr.HTTPCode() == http.StatusTooManyRequests {
			return true
		}
		if st := gaxErr.GRPCStatus(); st != nil && st.Code() == codes.ResourceExhausted {
			return true
		}
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota")
}
