// Package analyzer runs one meal photo through the whole estimation
// pipeline: reachability preflight, credential check, image
// preprocessing, the inference call with its retry budget, and
// normalization into the persisted record shape. Each Analyze call is a
// single sequential task; the credential store and the connectivity flag
// are the only shared state it touches.
package analyzer

import (
	"context"
	goimage "image"

	snapimage "github.com/snapcal/snapcal/internal/image"
	"github.com/snapcal/snapcal/internal/provider"
	"github.com/snapcal/snapcal/pkg/models"
)

// CredentialSource reports the current API credential and its validity.
type CredentialSource interface {
	Get() string
	IsValid() bool
}

// Connectivity reports the last observed network reachability.
type Connectivity interface {
	Available() bool
}

// Service wires the pipeline collaborators together. Providers are
// constructed per call so a credential changed in settings takes effect
// on the next analysis without restarting anything.
type Service struct {
	creds       CredentialSource
	network     Connectivity
	imageOpts   snapimage.Options
	newProvider func(apiKey string) (provider.Analyzer, error)
	demo        provider.Analyzer
}

func NewService(
	creds CredentialSource,
	network Connectivity,
	imageOpts snapimage.Options,
	newProvider func(apiKey string) (provider.Analyzer, error),
	demo provider.Analyzer,
) *Service {
	return &Service{
		creds:       creds,
		network:     network,
		imageOpts:   imageOpts,
		newProvider: newProvider,
		demo:        demo,
	}
}

// Analyze produces a persisted-shape record for img. An absent or invalid
// credential routes to the demo provider; that path is a designed mode,
// not an error, and performs no network call.
func (s *Service) Analyze(ctx context.Context, img goimage.Image) (*models.FoodAnalysis, error) {
	if !s.network.Available() {
		return nil, provider.ErrNoConnection
	}

	if !s.creds.IsValid() {
		return s.analyzeDemo(ctx, img)
	}

	jpeg, err := snapimage.Compress(img, s.imageOpts)
	if err != nil {
		return nil, provider.ErrImageTooLarge
	}

	real, err := s.newProvider(s.creds.Get())
	if err != nil {
		return nil, err
	}

	result, usage, err := real.Analyze(ctx, jpeg)
	if err != nil {
		return nil, err
	}

	return Normalize(result, jpeg, usage), nil
}

// AnalyzeDemo runs the offline fallback explicitly, regardless of the
// configured credential.
func (s *Service) AnalyzeDemo(ctx context.Context, img goimage.Image) (*models.FoodAnalysis, error) {
	return s.analyzeDemo(ctx, img)
}

func (s *Service) analyzeDemo(ctx context.Context, img goimage.Image) (*models.FoodAnalysis, error) {
	result, usage, err := s.demo.Analyze(ctx, nil)
	if err != nil {
		return nil, err
	}

	// Embed the photo when it fits the budget; the demo record is still
	// valid without one.
	jpeg, err := snapimage.Compress(img, s.imageOpts)
	if err != nil {
		jpeg = nil
	}

	return Normalize(result, jpeg, usage), nil
}
