package synthesis

import (
	"context"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/metrics"
	"golang.org/x/sync/errgroup"
)

// Service generates comparison pairs.
type Service struct {
	gen     Generator
	store   *Store
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewService(gen Generator, store *Store, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{gen: gen, store: store, log: log, metrics: m}
}

// GeneratePair renders input for both candidates concurrently. If either
// side fails, whatever was produced is released and TransientUpstream is
// returned.
func (s *Service) GeneratePair(ctx context.Context, input string, candidateIDs [2]string) ([2]*FileArtifact, error) {
	var out [2]*FileArtifact
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range candidateIDs {
		g.Go(func() error {
			art, err := s.generate(gctx, input, id)
			if err != nil {
				return err
			}
			out[i] = art
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, art := range out {
			if art != nil {
				if rerr := art.Release(); rerr != nil {
					s.log.Warn("release partial artifact failed", "path", art.Path(), "error", rerr)
				}
			}
		}
		return [2]*FileArtifact{}, apperr.Upstream(err, "generate comparison audio")
	}
	return out, nil
}

func (s *Service) generate(ctx context.Context, input, candidateID string) (*FileArtifact, error) {
	start := time.Now()
	res, err := s.gen.Generate(ctx, input, candidateID)
	if err == nil {
		var art *FileArtifact
		if art, err = s.store.Save(res); err == nil {
			s.metrics.ObserveSynthesis(candidateID, time.Since(start).Seconds(), false)
			return art, nil
		}
	}
	s.metrics.ObserveSynthesis(candidateID, time.Since(start).Seconds(), true)
	s.log.Warn("synthesis failed", "candidate", candidateID, "error", err)
	return nil, err
}
