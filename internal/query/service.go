package query

import (
	"context"
	"time"

	"rates-app/internal/domain"
)

type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type HistoryReader interface {
	History(ctx context.Context, charCode string, limit int) ([]domain.Sample, error)
	DistinctCodes(ctx context.Context) ([]string, error)
}

type Service struct {
	source domain.RateSource
	store  HistoryReader
}

func NewService(source domain.RateSource, store HistoryReader) *Service {
	return &Service{source: source, store: store}
}

func (s *Service) Current(ctx context.Context) (*domain.Snapshot, error) {
	return s.source.Fetch(ctx)
}

func (s *Service) HistoryFor(ctx context.Context, charCode string) ([]Point, error) {
	return s.RecentHistory(ctx, charCode, 0)
}

func (s *Service) RecentHistory(ctx context.Context, charCode string, limit int) ([]Point, error) {
	samples, err := s.store.History(ctx, charCode, limit)
	if err != nil {
		return nil, err
	}

	points := make([]Point, 0, len(samples))
	for _, sample := range samples {
		points = append(points, Point{Timestamp: sample.Timestamp, Value: sample.Value})
	}
	return points, nil
}

func (s *Service) Codes(ctx context.Context) ([]string, error) {
	codes, err := s.store.DistinctCodes(ctx)
	if err != nil {
		return nil, err
	}
	if codes == nil {
		codes = []string{}
	}
	return codes, nil
}
