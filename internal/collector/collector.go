package collector

import (
	"context"
	"sync"
	"time"

	"github.com/leggler/PV-Aggregator/internal/config"
	"github.com/leggler/PV-Aggregator/internal/core/domain"
	"github.com/leggler/PV-Aggregator/internal/store"

	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

// Collector drives the poll cycle: every interval it polls all sources
// under a bounded worker pool, aggregates their last-known-good values
// into a Snapshot and publishes it to the store. It is the store's
// single writer.
type Collector struct {
	cfg     config.MonitorConfig
	sources []*Source
	store   *store.Store
	logger  *zap.Logger

	scheduler quartz.Scheduler
	runMu     sync.Mutex
	cycleID   uint64
	onPublish []func(domain.Snapshot)
}

func NewCollector(cfg config.MonitorConfig, sources []*Source, st *store.Store, logger *zap.Logger) *Collector {
	return &Collector{
		cfg:     cfg,
		sources: sources,
		store:   st,
		logger:  logger.With(zap.String("role", "collector")),
	}
}

// OnPublish registers a hook invoked after each published snapshot.
// Hooks run on the cycle goroutine; they must not block past their own
// timeouts. Registration is not safe after Start.
func (c *Collector) OnPublish(fn func(domain.Snapshot)) {
	c.onPublish = append(c.onPublish, fn)
}

type pollCycleJob struct {
	collector *Collector
}

func (j *pollCycleJob) Execute(ctx context.Context) error {
	return j.collector.RunCycle(ctx)
}

func (j *pollCycleJob) Description() string {
	return "poll cycle over all configured inverters"
}

// Start connects all sources, runs an immediate first cycle and
// schedules recurring cycles. Cancelling ctx stops the scheduler.
func (c *Collector) Start(ctx context.Context) error {
	for _, src := range c.sources {
		src.Connect()
	}

	c.scheduler = quartz.NewStdScheduler()
	c.scheduler.Start(ctx)

	job := quartz.NewJobDetail(&pollCycleJob{collector: c}, quartz.NewJobKey("poll_cycle"))
	if err := c.scheduler.ScheduleJob(job, quartz.NewSimpleTrigger(c.cfg.PollInterval())); err != nil {
		return err
	}

	// first readings should be available before the first trigger fires
	go c.RunCycle(ctx)

	c.logger.Info("collector started",
		zap.Int("sources", len(c.sources)),
		zap.Duration("interval", c.cfg.PollInterval()))
	return nil
}

// Stop halts scheduling, waits for an in-flight cycle within the ctx
// deadline and closes all source connections.
func (c *Collector) Stop(ctx context.Context) {
	if c.scheduler != nil {
		c.scheduler.Stop()
		c.scheduler.Wait(ctx)
	}
	for _, src := range c.sources {
		src.Close()
	}
	c.logger.Info("collector stopped")
}

// RunCycle performs one full poll pass and publishes the resulting
// snapshot. If ctx is cancelled before the pass completes, nothing is
// published. Cycles never overlap; a late cycle delays the next one.
func (c *Collector) RunCycle(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	results := make([]pollResult, len(c.sources))
	sem := make(chan struct{}, c.cfg.MaxConcurrentPolls)

	var wg sync.WaitGroup
	for i, src := range c.sources {
		wg.Add(1)
		go func(i int, src *Source) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			results[i] = src.poll()
		}(i, src)
	}
	wg.Wait()

	if ctx.Err() != nil {
		c.logger.Debug("cycle abandoned", zap.Error(ctx.Err()))
		return ctx.Err()
	}

	c.cycleID++
	snapshot := domain.Snapshot{
		CycleID:     c.cycleID,
		GeneratedAt: time.Now(),
	}
	statuses := make([]domain.SourceStatus, len(c.sources))
	for i, src := range c.sources {
		snapshot.TotalPowerKW += src.state.LastPowerKW
		snapshot.TotalEnergyKWh += src.state.LastEnergyKWh
		snapshot.SuccessCount += results[i].successCount()
		statuses[i] = src.Status()
	}

	c.store.Publish(snapshot, statuses)
	c.logger.Info("cycle published",
		zap.Uint64("cycle", snapshot.CycleID),
		zap.Float64("total_power_kw", snapshot.TotalPowerKW),
		zap.Float64("total_energy_kwh", snapshot.TotalEnergyKWh),
		zap.Uint32("success_count", snapshot.SuccessCount))

	for _, fn := range c.onPublish {
		fn(snapshot)
	}
	return nil
}
