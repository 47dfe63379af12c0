package sun2000modbus

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type SUN2000ModbusReader struct {
	ModbusClient

	logger *zap.Logger
}

func (inv *SUN2000ModbusReader) Open() error {
	return inv.client.Open()
}

func (inv SUN2000ModbusReader) Close() error {
	return inv.client.Close()
}

func (inv SUN2000ModbusReader) GetInfo() (*InverterInfo, error) {
	model, err := inv.readString(registerModelName, registerModelNameSize)
	if err != nil {
		return nil, err
	}
	serial, err := inv.readString(registerSerialNumber, registerSerialNumSize)
	if err != nil {
		return nil, err
	}
	ratedPower, err := inv.readUint32(registerRatedPower, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}

	return &InverterInfo{
		Model:             model,
		Serial:            serial,
		MaxRatedPowerWatt: ratedPower,
	}, nil
}

func (inv SUN2000ModbusReader) GetState() (*InverterState, error) {
	temp, err := inv.readRegister(registerInternalTemp, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	status, err := inv.readRegister(registerDeviceStatus, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}

	return &InverterState{
		InternalTemperature: applyGain(int64(int16(temp)), gainInternalTemperature),
		DeviceStatus:        status,
		DeviceStatusStr:     DeviceStatusToString(status),
	}, nil
}

// GetActivePowerKW reads the instantaneous active power register. The
// register holds watts as INT32; negative values (consumption at
// night) are reported as-is.
func (inv SUN2000ModbusReader) GetActivePowerKW() (float64, error) {
	raw, err := inv.readUint32(registerActivePower, modbus.HOLDING_REGISTER)
	if err != nil {
		return 0, err
	}
	return float64(int32(raw)) / 1000, nil
}

// GetAccumulatedEnergyKWh reads the lifetime energy yield register
// (UINT32, hundredths of a kWh).
func (inv SUN2000ModbusReader) GetAccumulatedEnergyKWh() (float64, error) {
	raw, err := inv.readUint32(registerAccumulatedKWh, modbus.HOLDING_REGISTER)
	if err != nil {
		return 0, err
	}
	return applyGain(int64(raw), gainAccumulatedEnergy), nil
}

func traceLoggerInstrumentation(logger *zap.Logger) *ModbusInstrument {
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus read",
				zap.String("fn", fnName),
				zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}

func CreateSUN2000ModbusReader(ip string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (InverterReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	// instrumentation
	var inst []ModbusInstrument
	logInst := traceLoggerInstrumentation(logger.With(zap.String("target", "inverter"), zap.Uint8("unit", unitId)))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	// set inverter address
	if unitId > 0 {
		err = client.SetUnitId(unitId)
		if err != nil {
			return nil, err
		}
	}

	reader := SUN2000ModbusReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
		logger: logger,
	}
	return &reader, nil
}
