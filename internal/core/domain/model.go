package domain

import "time"

// SourceState is the per-inverter poll record. It is owned and mutated
// only by the collector; everyone else sees copies via SourceStatus.
// LastPowerKW/LastEnergyKWh hold the last successfully decoded values,
// or 0 before any success, so a reader always gets a number.
type SourceState struct {
	Name                string
	LastPowerKW         float64
	LastEnergyKWh       float64
	LastSuccessAt       time.Time
	ConsecutiveFailures uint32
	TotalFailures       uint64
	Connected           bool
}

// Snapshot is the immutable aggregated result of one completed poll
// cycle. CycleID increases by one per published snapshot.
type Snapshot struct {
	CycleID        uint64
	TotalPowerKW   float64
	TotalEnergyKWh float64
	SuccessCount   uint32
	GeneratedAt    time.Time
}

// SourceStatus is the read-only view of one SourceState plus the device
// identity captured at connect time and the latest diagnostic state, as
// rendered by the query API.
type SourceStatus struct {
	Name                string     `json:"name"`
	LastPowerKW         float64    `json:"last_power_kw"`
	LastEnergyKWh       float64    `json:"last_energy_kwh"`
	ConsecutiveFailures uint32     `json:"consecutive_failures"`
	TotalFailures       uint64     `json:"total_failures"`
	Connected           bool       `json:"connected"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	Model               string     `json:"model,omitempty"`
	Serial              string     `json:"serial,omitempty"`
	RatedPowerWatt      uint32     `json:"rated_power_watt,omitempty"`
	DeviceStatus        string     `json:"device_status,omitempty"`
	InternalTemperature float64    `json:"internal_temperature,omitempty"`
}

func (s SourceState) Status() SourceStatus {
	st := SourceStatus{
		Name:                s.Name,
		LastPowerKW:         s.LastPowerKW,
		LastEnergyKWh:       s.LastEnergyKWh,
		ConsecutiveFailures: s.ConsecutiveFailures,
		TotalFailures:       s.TotalFailures,
		Connected:           s.Connected,
	}
	if !s.LastSuccessAt.IsZero() {
		t := s.LastSuccessAt
		st.LastSuccessAt = &t
	}
	return st
}
