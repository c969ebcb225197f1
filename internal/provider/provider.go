package provider

import (
	"context"
	"errors"
	"time"

	"github.com/snapcal/snapcal/pkg/models"
)

var (
	// ErrNoConnection means the device is offline; no request was attempted.
	ErrNoConnection = errors.New("no internet connection")
	// ErrImageTooLarge means preprocessing could not fit the image in budget.
	ErrImageTooLarge = errors.New("image too large")
	// ErrInvalidCredential maps HTTP 401; never retried.
	ErrInvalidCredential = errors.New("invalid API key")
	// ErrRateLimited maps HTTP 429; never retried.
	ErrRateLimited = errors.New("API rate limit exceeded")
	// ErrDecoding wraps a parse failure of the model's answer; terminal for
	// the response that produced it.
	ErrDecoding = errors.New("failed to parse analysis response")
	// ErrNetwork wraps transport failures and unclassified non-2xx statuses.
	ErrNetwork = errors.New("network error")

	ErrAPIKeyRequired = errors.New("API key is required")
)

// IsRetryable reports whether a failed attempt may be repeated within the
// attempt budget. Only generic network failures qualify: auth and
// rate-limit errors fail fast, and a malformed model answer will not
// improve by resending the identical request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// Analyzer produces a nutritional estimate for a JPEG-encoded meal photo.
type Analyzer interface {
	Analyze(ctx context.Context, jpeg []byte) (*models.AnalysisResult, *models.Usage, error)
}

// Config carries the transport settings shared by Analyzer implementations.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration
	Verbose     bool
}
