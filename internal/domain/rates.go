package domain

import (
	"context"
	"time"
)

type Sample struct {
	CharCode  string    `json:"char_code"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type Valute struct {
	ID       string  `json:"ID"`
	NumCode  string  `json:"NumCode"`
	CharCode string  `json:"CharCode"`
	Nominal  int     `json:"Nominal"`
	Name     string  `json:"Name"`
	Value    float64 `json:"Value"`
	Previous float64 `json:"Previous"`
}

type Snapshot struct {
	CapturedAt   time.Time `json:"-"`
	Date         string    `json:"Date"`
	PreviousDate string    `json:"PreviousDate"`
	Valute       []Valute  `json:"Valute"`
}

func (s *Snapshot) Samples() []Sample {
	samples := make([]Sample, 0, len(s.Valute))
	for _, v := range s.Valute {
		samples = append(samples, Sample{
			CharCode:  v.CharCode,
			Timestamp: s.CapturedAt,
			Value:     v.Value,
		})
	}
	return samples
}

type RateSource interface {
	Fetch(ctx context.Context) (*Snapshot, error)
}

type RateStore interface {
	Init() error
	Append(ctx context.Context, samples []Sample) error
	Prune(ctx context.Context, maxPoints int) error
	// Record appends one tick and prunes to maxPoints as a single unit.
	Record(ctx context.Context, samples []Sample, maxPoints int) error
	History(ctx context.Context, charCode string, limit int) ([]Sample, error)
	DistinctCodes(ctx context.Context) ([]string, error)
	Close() error
}
