package sun2000modbus

import "errors"

func CreateTestInverterReader() *TestInverterReader {
	return &TestInverterReader{
		PowerKW:   4.2,
		EnergyKWh: 10520.55,
	}
}

// TestInverterReader is an in-memory InverterReader. Failure flags make
// individual reads fail, which is what collector tests drive.
type TestInverterReader struct {
	PowerKW   float64
	EnergyKWh float64

	FailOpen   bool
	FailPower  bool
	FailEnergy bool

	OpenCalls  int
	CloseCalls int
}

var errTestRead = errors.New("read timed out")

func (inv *TestInverterReader) Open() error {
	inv.OpenCalls++
	if inv.FailOpen {
		return errors.New("connection refused")
	}
	return nil
}

func (inv *TestInverterReader) Close() error {
	inv.CloseCalls++
	return nil
}

func (inv *TestInverterReader) GetInfo() (*InverterInfo, error) {
	if inv.FailOpen {
		return nil, errTestRead
	}
	return &InverterInfo{
		Model:             "SUN2000-10KTL-M1",
		Serial:            "HV3021000000",
		MaxRatedPowerWatt: 10000,
	}, nil
}

func (inv *TestInverterReader) GetState() (*InverterState, error) {
	if inv.FailOpen {
		return nil, errTestRead
	}
	return &InverterState{
		InternalTemperature: 38.1,
		DeviceStatus:        0x0200,
		DeviceStatusStr:     DeviceStatusToString(0x0200),
	}, nil
}

func (inv *TestInverterReader) GetActivePowerKW() (float64, error) {
	if inv.FailPower {
		return 0, errTestRead
	}
	return inv.PowerKW, nil
}

func (inv *TestInverterReader) GetAccumulatedEnergyKWh() (float64, error) {
	if inv.FailEnergy {
		return 0, errTestRead
	}
	return inv.EnergyKWh, nil
}
