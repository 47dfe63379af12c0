package collector

import (
	"time"

	"github.com/leggler/PV-Aggregator/internal/config"
	"github.com/leggler/PV-Aggregator/internal/core/domain"
	"github.com/leggler/PV-Aggregator/pkg/sun2000modbus"

	"go.uber.org/zap"
)

// Source pairs one inverter reader with its poll state. The state is
// mutated only from poll(), which the collector calls from exactly one
// goroutine per cycle, so no locking is needed here.
type Source struct {
	cfg      config.SourceConfig
	reader   sun2000modbus.InverterReader
	state    domain.SourceState
	info     *sun2000modbus.InverterInfo
	devState *sun2000modbus.InverterState
	logger   *zap.Logger
}

// pollResult reports which of the two reads succeeded this cycle.
// Power and energy are accounted independently.
type pollResult struct {
	powerOK  bool
	energyOK bool
}

func (r pollResult) successCount() uint32 {
	var n uint32
	if r.powerOK {
		n++
	}
	if r.energyOK {
		n++
	}
	return n
}

func NewSource(cfg config.SourceConfig, reader sun2000modbus.InverterReader, logger *zap.Logger) *Source {
	return &Source{
		cfg:    cfg,
		reader: reader,
		state:  domain.SourceState{Name: cfg.Name},
		logger: logger.With(zap.String("source", cfg.Name)),
	}
}

// Connect attempts the initial connection and identity readout. A
// failure is logged, not returned: the source starts in reconnecting
// state and the first poll cycle retries.
func (s *Source) Connect() {
	if err := s.reader.Open(); err != nil {
		s.logger.Warn("could not connect", zap.String("host", s.cfg.Host), zap.Error(err))
		return
	}
	s.state.Connected = true
	s.logger.Info("connected", zap.String("host", s.cfg.Host))

	info, err := s.reader.GetInfo()
	if err != nil {
		s.logger.Warn("could not read device info", zap.Error(err))
		return
	}
	s.info = info
	s.logger.Info("device identified",
		zap.String("model", info.Model),
		zap.String("serial", info.Serial),
		zap.Uint32("rated_power_watt", info.MaxRatedPowerWatt))
}

// reconnect runs the disconnect-then-connect sequence before a read on
// a source currently in reconnecting state.
func (s *Source) reconnect() bool {
	s.reader.Close()
	if err := s.reader.Open(); err != nil {
		s.logger.Warn("reconnect failed", zap.Error(err))
		return false
	}
	s.logger.Info("reconnected")
	return true
}

// poll performs one power read and one energy read. Failures never
// propagate: they are counted, logged and reflected in the returned
// pollResult. Last-known-good values stay untouched on failure.
func (s *Source) poll() pollResult {
	if !s.state.Connected {
		if !s.reconnect() {
			s.state.TotalFailures += 2
			s.state.ConsecutiveFailures++
			return pollResult{}
		}
	}

	wasFailing := s.state.ConsecutiveFailures > 0
	var res pollResult

	if power, err := s.reader.GetActivePowerKW(); err != nil {
		s.state.TotalFailures++
		s.logger.Warn("power read failed",
			zap.Error(err),
			zap.Uint64("total_failures", s.state.TotalFailures))
	} else {
		s.state.LastPowerKW = power
		res.powerOK = true
	}

	if energy, err := s.reader.GetAccumulatedEnergyKWh(); err != nil {
		s.state.TotalFailures++
		s.logger.Warn("energy read failed",
			zap.Error(err),
			zap.Uint64("total_failures", s.state.TotalFailures))
	} else {
		s.state.LastEnergyKWh = energy
		res.energyOK = true
	}

	if res.powerOK || res.energyOK {
		s.state.LastSuccessAt = time.Now()
	}

	if res.powerOK && res.energyOK {
		s.state.ConsecutiveFailures = 0
		s.state.Connected = true
		if wasFailing {
			s.logger.Info("source recovered",
				zap.Float64("power_kw", s.state.LastPowerKW),
				zap.Float64("energy_kwh", s.state.LastEnergyKWh))
		}
		// diagnostic readout; best effort, not an accounted reading
		if devState, err := s.reader.GetState(); err == nil {
			s.devState = devState
		}
	} else {
		s.state.ConsecutiveFailures++
		// a failed read leaves the connection suspect; re-dial next cycle
		s.state.Connected = false
	}
	return res
}

// Status returns the read-only view of the source including the device
// identity captured at connect time and the latest diagnostic state.
func (s *Source) Status() domain.SourceStatus {
	st := s.state.Status()
	if s.info != nil {
		st.Model = s.info.Model
		st.Serial = s.info.Serial
		st.RatedPowerWatt = s.info.MaxRatedPowerWatt
	}
	if s.devState != nil {
		st.DeviceStatus = s.devState.DeviceStatusStr
		st.InternalTemperature = s.devState.InternalTemperature
	}
	return st
}

func (s *Source) Close() {
	if err := s.reader.Close(); err != nil {
		s.logger.Debug("close failed", zap.Error(err))
		return
	}
	s.logger.Info("disconnected")
}
