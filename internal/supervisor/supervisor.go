package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/leggler/PV-Aggregator/internal/busserver"
	"github.com/leggler/PV-Aggregator/internal/collector"
	"github.com/leggler/PV-Aggregator/internal/mqtt"

	"go.uber.org/zap"
)

const defaultGracePeriod = 5 * time.Second

// Supervisor owns the lifecycle of the three concurrent roles
// (collector, bus server, query API) plus the optional MQTT publisher,
// all wired to one shared store. Startup failures are returned and
// fatal; steady-state source failures never are.
type Supervisor struct {
	collector   *collector.Collector
	bus         *busserver.Server
	api         *http.Server
	publisher   *mqtt.Publisher
	logger      *zap.Logger
	GracePeriod time.Duration
}

func New(coll *collector.Collector, bus *busserver.Server, api *http.Server,
	publisher *mqtt.Publisher, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		collector:   coll,
		bus:         bus,
		api:         api,
		publisher:   publisher,
		logger:      logger.With(zap.String("role", "supervisor")),
		GracePeriod: defaultGracePeriod,
	}
}

// Run starts all roles and blocks until ctx is cancelled (termination
// signal) or the API server fails. It then executes the coordinated
// shutdown: stop scheduling new cycles, drain both servers within the
// grace period, close source connections, announce offline.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.bus.Start(); err != nil {
		return err
	}

	if err := s.collector.Start(ctx); err != nil {
		s.bus.Stop()
		return err
	}

	if s.publisher != nil {
		s.publisher.Start()
	}

	apiErr := make(chan error, 1)
	go func() {
		s.logger.Info("query api started", zap.String("addr", s.api.Addr))
		if err := s.api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			apiErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case runErr = <-apiErr:
		s.logger.Error("query api failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.GracePeriod)
	defer cancel()

	// ctx cancellation already stopped the cycle scheduler; drain the
	// servers, then wait out the in-flight cycle and close sources.
	if err := s.api.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("query api forced to shutdown", zap.Error(err))
	}
	s.bus.Stop()
	s.collector.Stop(shutdownCtx)
	if s.publisher != nil {
		s.publisher.Stop()
	}

	s.logger.Info("shutdown complete")
	return runErr
}
