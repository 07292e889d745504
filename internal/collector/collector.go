package collector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"rates-app/internal/domain"
	"rates-app/internal/metrics"
	"rates-app/internal/util"
)

var ErrAlreadyStarted = errors.New("collector already started")

type Recorder interface {
	Record(ctx context.Context, samples []domain.Sample, maxPoints int) error
}

type Publisher interface {
	Publish(ts time.Time, samples []domain.Sample) int
}

type Config struct {
	Interval     time.Duration // time between ticks (default: 60s)
	MaxPoints    int           // samples retained per currency (default: 20)
	FetchTimeout time.Duration // upper bound for one upstream call (default: 10s)
}

func DefaultConfig() Config {
	return Config{
		Interval:     60 * time.Second,
		MaxPoints:    20,
		FetchTimeout: 10 * time.Second,
	}
}

type Collector struct {
	cfg       Config
	source    domain.RateSource
	store     Recorder
	publisher Publisher
	logger    *util.RatesLogger
	metrics   *metrics.Metrics

	tickMu        sync.Mutex
	lastBroadcast atomic.Int64

	startMu sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// publisher may be nil
func New(cfg Config, source domain.RateSource, store Recorder, publisher Publisher, logger *util.RatesLogger, m *metrics.Metrics) *Collector {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = def.MaxPoints
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}

	return &Collector{
		cfg:       cfg,
		source:    source,
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
	}
}

func (c *Collector) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.run()

	c.logger.LogEvent(util.LOG_LEVEL_INFO, "collector started. interval -", c.cfg.Interval, "max points -", c.cfg.MaxPoints)
	return nil
}

func (c *Collector) Stop(ctx context.Context) error {
	c.startMu.Lock()
	cancel := c.cancel
	c.startMu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.LogEvent(util.LOG_LEVEL_INFO, "collector stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collector) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.RunOnce(c.ctx)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(c.ctx)
		}
	}
}

func (c *Collector) RunOnce(ctx context.Context) error {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return c.tick(ctx)
}

func (c *Collector) LastBroadcast() time.Time {
	ns := c.lastBroadcast.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func (c *Collector) tick(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	start := time.Now()
	snapshot, err := c.source.Fetch(fetchCtx)
	cancel()
	c.metrics.ObserveFetch(time.Since(start))

	if err != nil {
		if ctx.Err() != nil {
			c.logger.LogEvent(util.LOG_LEVEL_DEBUG, "tick aborted by shutdown")
			c.metrics.ObserveTick("aborted")
			return err
		}
		c.logger.LogEvent(util.LOG_LEVEL_WARN, "Failed to fetch rates. Err -", err)
		c.metrics.ObserveTick("fetch_error")
		return err
	}

	samples := snapshot.Samples()

	writeCtx := context.WithoutCancel(ctx)
	if err := c.store.Record(writeCtx, samples, c.cfg.MaxPoints); err != nil {
		c.logger.LogEvent(util.LOG_LEVEL_ERROR, "Failed to record tick. Err -", err)
		c.metrics.ObserveTick("store_error")
		return err
	}
	c.metrics.ObserveStored(len(samples), snapshot.CapturedAt)

	delivered := 0
	if c.publisher != nil {
		delivered = c.publisher.Publish(snapshot.CapturedAt, samples)
	}
	c.lastBroadcast.Store(snapshot.CapturedAt.UnixNano())
	c.metrics.ObserveTick("success")

	c.logger.LogEvent(util.LOG_LEVEL_INFO, "tick complete. samples -", len(samples), "subscribers -", delivered, "duration -", time.Since(start))
	return nil
}
