package vision

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service glues the analyzer to storage. A nil analyzer means the relay is
// disabled (no VISION_API_KEY); callers get ErrDisabled rather than a panic.
type Service struct {
	analyzer Analyzer
	repo     Repository
	clock    func() time.Time
}

func NewService(analyzer Analyzer, repo Repository) *Service {
	return &Service{
		analyzer: analyzer,
		repo:     repo,
		clock:    time.Now,
	}
}

func (s *Service) Enabled() bool { return s.analyzer != nil }

// AnalyzeAndStore relays one image and persists the result under a server id.
func (s *Service) AnalyzeAndStore(ctx context.Context, image []byte, contentType string) (Analysis, error) {
	if s.analyzer == nil {
		return Analysis{}, ErrDisabled
	}

	summary, err := s.analyzer.Analyze(ctx, image, contentType)
	if err != nil {
		return Analysis{}, err
	}

	a := Analysis{
		ID:        uuid.NewString(),
		Summary:   summary,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return Analysis{}, err
	}
	return a, nil
}

// Latest returns the most recent analysis, used to backfill call context when
// the caller supplies no image summary of their own.
func (s *Service) Latest(ctx context.Context) (Analysis, error) {
	a, ok, err := s.repo.Latest(ctx)
	if err != nil {
		return Analysis{}, err
	}
	if !ok {
		return Analysis{}, ErrNoAnalyses
	}
	return a, nil
}

// Get looks up one stored analysis by id.
func (s *Service) Get(ctx context.Context, id string) (Analysis, error) {
	a, ok, err := s.repo.Get(ctx, id)
	if err != nil {
		return Analysis{}, err
	}
	if !ok {
		return Analysis{}, ErrNoAnalyses
	}
	return a, nil
}
