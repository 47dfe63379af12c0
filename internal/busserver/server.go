package busserver

import (
	"fmt"
	"math"
	"time"

	"github.com/leggler/PV-Aggregator/internal/config"
	"github.com/leggler/PV-Aggregator/internal/core/domain"
	"github.com/leggler/PV-Aggregator/internal/store"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// Register map served to external Modbus masters. All values unsigned,
// big word order:
//
//	0-1  UINT32  total active power, kW
//	2-3  UINT32  total accumulated energy, kWh
//	4    UINT16  successful readings in the last cycle (0..2N)
const registerCount = 5

// Server is the Modbus TCP slave role. Every read request recomputes
// the register block from the store's current snapshot, so masters
// always see one complete cycle, never a mixture of two.
type Server struct {
	cfg    config.BusServerConfig
	store  *store.Store
	server *modbus.ModbusServer
	logger *zap.Logger
}

func NewServer(cfg config.BusServerConfig, st *store.Store, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		store:  st,
		logger: logger.With(zap.String("role", "bus_server")),
	}

	server, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        fmt.Sprintf("tcp://%s:%d", cfg.ListenAddress, cfg.Port),
		Timeout:    30 * time.Second,
		MaxClients: cfg.MaxClients,
	}, s)
	if err != nil {
		return nil, err
	}
	s.server = server
	return s, nil
}

// Start binds the listening socket. A bind failure is a fatal startup
// error for the process.
func (s *Server) Start() error {
	if err := s.server.Start(); err != nil {
		return fmt.Errorf("bus server listen: %w", err)
	}
	s.logger.Info("bus server started",
		zap.String("address", s.cfg.ListenAddress),
		zap.Uint("port", s.cfg.Port))
	return nil
}

func (s *Server) Stop() {
	if err := s.server.Stop(); err != nil {
		s.logger.Warn("bus server stop", zap.Error(err))
	}
	s.logger.Info("bus server stopped")
}

// RegisterMap encodes one snapshot into the served register block.
func RegisterMap(snapshot domain.Snapshot) [registerCount]uint16 {
	power := clampUint32(snapshot.TotalPowerKW)
	energy := clampUint32(snapshot.TotalEnergyKWh)
	return [registerCount]uint16{
		uint16(power >> 16),
		uint16(power),
		uint16(energy >> 16),
		uint16(energy),
		uint16(snapshot.SuccessCount),
	}
}

func clampUint32(value float64) uint32 {
	rounded := math.Round(value)
	if rounded <= 0 {
		return 0
	}
	if rounded >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(rounded)
}

// HandleHoldingRegisters serves reads from the fixed register map.
// Writes and out-of-range addresses get the protocol's standard
// exception responses; the connection stays open. Requests addressed
// to another unit answer gateway target failed, not illegal function.
func (s *Server) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.UnitId != uint8(s.cfg.UnitId) {
		return nil, modbus.ErrGWTargetFailedToRespond
	}
	if req.IsWrite {
		return nil, modbus.ErrIllegalFunction
	}
	if int(req.Addr)+int(req.Quantity) > registerCount {
		return nil, modbus.ErrIllegalDataAddress
	}
	regs := RegisterMap(s.store.Snapshot())
	return regs[req.Addr : int(req.Addr)+int(req.Quantity)], nil
}

// HandleInputRegisters mirrors the holding register block; some SCADA
// masters only issue function 04.
func (s *Server) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	if req.UnitId != uint8(s.cfg.UnitId) {
		return nil, modbus.ErrGWTargetFailedToRespond
	}
	if int(req.Addr)+int(req.Quantity) > registerCount {
		return nil, modbus.ErrIllegalDataAddress
	}
	regs := RegisterMap(s.store.Snapshot())
	return regs[req.Addr : int(req.Addr)+int(req.Quantity)], nil
}

func (s *Server) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (s *Server) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}
