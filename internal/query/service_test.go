package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rates-app/internal/domain"
	"rates-app/internal/repository"
)

type stubSource struct {
	snapshot *domain.Snapshot
	err      error
	calls    int
}

func (s *stubSource) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	s.calls++
	return s.snapshot, s.err
}

func newStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	store := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "rates.db"), nil)
	require.NoError(t, store.Init())
	t.Cleanup(func() { store.Close() })
	return store
}

func TestService_CurrentGoesUpstream(t *testing.T) {
	src := &stubSource{snapshot: &domain.Snapshot{Date: "2025-03-01", Valute: []domain.Valute{{CharCode: "USD", Value: 90}}}}
	svc := NewService(src, newStore(t))

	snapshot, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", snapshot.Date)

	svc.Current(context.Background())
	assert.Equal(t, 2, src.calls, "current is never cached")
}

func TestService_CurrentPropagatesFetchError(t *testing.T) {
	src := &stubSource{err: &domain.FetchError{Kind: domain.Unreachable, Err: errors.New("dial tcp")}}
	svc := NewService(src, newStore(t))

	snapshot, err := svc.Current(context.Background())
	assert.Nil(t, snapshot)
	assert.True(t, domain.IsFetchError(err, domain.Unreachable))
}

func TestService_HistoryFor(t *testing.T) {
	store := newStore(t)
	svc := NewService(&stubSource{}, store)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// unknown code before anything is recorded
	points, err := svc.HistoryFor(ctx, "EUR")
	assert.NoError(t, err)
	assert.NotNil(t, points)
	assert.Len(t, points, 0)

	for i, v := range []float64{90, 91, 92} {
		require.NoError(t, store.Record(ctx, []domain.Sample{{CharCode: "USD", Timestamp: base.Add(time.Duration(i) * time.Minute), Value: v}}, 3))
	}

	points, err = svc.HistoryFor(ctx, "USD")
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 90.0, points[0].Value)
	assert.True(t, points[0].Timestamp.Before(points[1].Timestamp))

	points, err = svc.RecentHistory(ctx, "USD", 2)
	require.NoError(t, err)
	assert.Equal(t, []Point{
		{Timestamp: base.Add(time.Minute), Value: 91},
		{Timestamp: base.Add(2 * time.Minute), Value: 92},
	}, points)

	codes, err := svc.Codes(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"USD"}, codes)
}
