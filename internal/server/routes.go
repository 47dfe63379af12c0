package server

import (
	"net/http"
	"time"

	"github.com/leggler/PV-Aggregator/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type StatusResponse struct {
	Version        string                `json:"version"`
	CycleID        uint64                `json:"cycle_id"`
	TotalPowerKW   float64               `json:"total_power_kw"`
	TotalEnergyKWh float64               `json:"total_energy_kwh"`
	SuccessCount   uint32                `json:"success_count"`
	GeneratedAt    *time.Time            `json:"generated_at,omitempty"`
	Sources        []domain.SourceStatus `json:"sources"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/api/status", s.StatusHandler)

	return e
}

// HealthCheckHandler reports process liveness. Source failures are not
// health failures; they only show up in the status counters.
func (s *Server) HealthCheckHandler(c echo.Context) error {
	return c.String(http.StatusOK, "health_check: OK")
}

// StatusHandler renders the current snapshot plus per-source detail.
// It only reads the store, so any request concurrency is safe.
func (s *Server) StatusHandler(c echo.Context) error {
	snapshot := s.store.Snapshot()

	resp := StatusResponse{
		Version:        versioninfo.Short(),
		CycleID:        snapshot.CycleID,
		TotalPowerKW:   snapshot.TotalPowerKW,
		TotalEnergyKWh: snapshot.TotalEnergyKWh,
		SuccessCount:   snapshot.SuccessCount,
		Sources:        s.store.SourceStatuses(),
	}
	if !snapshot.GeneratedAt.IsZero() {
		t := snapshot.GeneratedAt
		resp.GeneratedAt = &t
	}
	if resp.Sources == nil {
		resp.Sources = []domain.SourceStatus{}
	}
	return c.JSON(http.StatusOK, resp)
}
