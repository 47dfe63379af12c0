package sun2000modbus

// Holding register addresses of the SUN2000 equipment register map.
// Strings are NUL-padded, multi-register numbers are big word order.
const (
	registerModelName       = 30000 // 15 registers, string
	registerSerialNumber    = 30015 // 10 registers, string
	registerRatedPower      = 30073 // UINT32, W
	registerActivePower     = 32080 // INT32, W
	registerInternalTemp    = 32087 // INT16, gain 10, C
	registerDeviceStatus    = 32089 // UINT16, enum
	registerAccumulatedKWh  = 32106 // UINT32, gain 100, kWh
	registerModelNameSize   = 30
	registerSerialNumSize   = 20
	gainInternalTemperature = 10
	gainAccumulatedEnergy   = 100
)

// InverterReader is the read-side contract against one SUN2000
// inverter. The power and energy reads are independent calls so a
// caller can account for their failures independently.
type InverterReader interface {
	Open() error
	Close() error
	GetInfo() (*InverterInfo, error)
	GetState() (*InverterState, error)
	GetActivePowerKW() (float64, error)
	GetAccumulatedEnergyKWh() (float64, error)
}

type InverterInfo struct {
	Model             string
	Serial            string
	MaxRatedPowerWatt uint32
}

type InverterState struct {
	InternalTemperature float64
	DeviceStatus        uint16
	DeviceStatusStr     string
}

func DeviceStatusToString(status uint16) string {
	switch status {
	case 0x0000:
		return "Standby: initializing"
	case 0x0001:
		return "Standby: detecting insulation resistance"
	case 0x0002:
		return "Standby: detecting irradiation"
	case 0x0003:
		return "Standby: grid detecting"
	case 0x0100:
		return "Starting"
	case 0x0200:
		return "On-grid"
	case 0x0201:
		return "Grid connection: power limited"
	case 0x0202:
		return "Grid connection: self-derating"
	case 0x0300:
		return "Shutdown: fault"
	case 0x0301:
		return "Shutdown: command"
	case 0x0302:
		return "Shutdown: OVGR"
	case 0x0A00:
		return "Standby: no irradiation"
	default:
		return "Unknown"
	}
}
