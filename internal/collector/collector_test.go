package collector

import (
	"context"
	"testing"

	"github.com/leggler/PV-Aggregator/internal/config"
	"github.com/leggler/PV-Aggregator/internal/core/domain"
	"github.com/leggler/PV-Aggregator/internal/store"
	"github.com/leggler/PV-Aggregator/pkg/sun2000modbus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testMonitorConfig() config.MonitorConfig {
	return config.MonitorConfig{
		PollIntervalMillis: 5000,
		ReadTimeoutMillis:  1000,
		MaxConcurrentPolls: 4,
	}
}

func testCollector(readers ...*sun2000modbus.TestInverterReader) (*Collector, *store.Store) {
	logger := zap.NewNop()
	sources := make([]*Source, len(readers))
	for i, r := range readers {
		cfg := config.SourceConfig{Name: "inverter" + string(rune('a'+i)), Host: "10.0.0.1", Port: 502, UnitId: 1}
		sources[i] = NewSource(cfg, r, logger)
		sources[i].Connect()
	}
	st := store.NewStore()
	return NewCollector(testMonitorConfig(), sources, st, logger), st
}

func TestAllSourcesSucceed(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	a := &sun2000modbus.TestInverterReader{PowerKW: 5, EnergyKWh: 100}
	b := &sun2000modbus.TestInverterReader{PowerKW: 7, EnergyKWh: 200}
	c, st := testCollector(a, b)

	require.NoError(c.RunCycle(context.Background()))

	snap := st.Snapshot()
	assert.Equal(uint64(1), snap.CycleID)
	assert.Equal(float64(12), snap.TotalPowerKW)
	assert.Equal(float64(300), snap.TotalEnergyKWh)
	assert.Equal(uint32(4), snap.SuccessCount)
	assert.False(snap.GeneratedAt.IsZero())

	for _, status := range st.SourceStatuses() {
		assert.True(status.Connected)
		assert.NotNil(status.LastSuccessAt)
		assert.Equal(uint32(0), status.ConsecutiveFailures)
	}
}

func TestFailureKeepsLastKnownGood(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	a := &sun2000modbus.TestInverterReader{PowerKW: 5, EnergyKWh: 100}
	c, st := testCollector(a)

	require.NoError(c.RunCycle(context.Background()))

	// cycle 2: both reads fail
	a.FailPower = true
	a.FailEnergy = true
	require.NoError(c.RunCycle(context.Background()))

	snap := st.Snapshot()
	assert.Equal(uint64(2), snap.CycleID)
	assert.Equal(float64(5), snap.TotalPowerKW, "last good value retained")
	assert.Equal(float64(100), snap.TotalEnergyKWh)
	assert.Equal(uint32(0), snap.SuccessCount)

	status := st.SourceStatuses()[0]
	assert.Equal(uint32(1), status.ConsecutiveFailures)
	assert.Equal(uint64(2), status.TotalFailures)
	assert.False(status.Connected)
}

func TestNeverSucceedingSourceReportsZero(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	a := &sun2000modbus.TestInverterReader{PowerKW: 9, EnergyKWh: 900, FailPower: true, FailEnergy: true}
	c, st := testCollector(a)

	var prevTotal uint64
	for i := 0; i < 3; i++ {
		require.NoError(c.RunCycle(context.Background()))
		status := st.SourceStatuses()[0]
		assert.Greater(status.TotalFailures, prevTotal, "total failures strictly increase")
		prevTotal = status.TotalFailures
	}

	status := st.SourceStatuses()[0]
	assert.Equal(float64(0), status.LastPowerKW)
	assert.Equal(float64(0), status.LastEnergyKWh)
	assert.Nil(status.LastSuccessAt)
	assert.Equal(uint32(3), status.ConsecutiveFailures)
	assert.Equal(float64(0), st.Snapshot().TotalPowerKW)
}

// The worked example from the register-count semantics: A power=5,
// B power=7 now but its power read fails (previous good value 3),
// C power=2. Total power 5+3+2, success count 2+1+2.
func TestPartialFailureCountsIndependently(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	a := &sun2000modbus.TestInverterReader{PowerKW: 5, EnergyKWh: 10}
	b := &sun2000modbus.TestInverterReader{PowerKW: 3, EnergyKWh: 20}
	cc := &sun2000modbus.TestInverterReader{PowerKW: 2, EnergyKWh: 30}
	c, st := testCollector(a, b, cc)

	require.NoError(c.RunCycle(context.Background()))
	assert.Equal(uint32(6), st.Snapshot().SuccessCount)

	b.PowerKW = 7
	b.FailPower = true
	require.NoError(c.RunCycle(context.Background()))

	snap := st.Snapshot()
	assert.Equal(float64(10), snap.TotalPowerKW)
	assert.Equal(uint32(5), snap.SuccessCount)

	status := st.SourceStatuses()[1]
	assert.Equal(uint32(1), status.ConsecutiveFailures)
	assert.NotNil(status.LastSuccessAt, "energy read still succeeded")
}

func TestRecoveryResetsConsecutiveFailures(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	a := &sun2000modbus.TestInverterReader{PowerKW: 5, EnergyKWh: 100, FailPower: true, FailEnergy: true}
	c, st := testCollector(a)

	require.NoError(c.RunCycle(context.Background()))
	require.NoError(c.RunCycle(context.Background()))
	assert.Equal(uint32(2), st.SourceStatuses()[0].ConsecutiveFailures)

	a.FailPower = false
	a.FailEnergy = false
	require.NoError(c.RunCycle(context.Background()))

	status := st.SourceStatuses()[0]
	assert.Equal(uint32(0), status.ConsecutiveFailures)
	assert.Equal(uint64(4), status.TotalFailures, "total failures never reset")
	assert.True(status.Connected)
	assert.Equal(float64(5), status.LastPowerKW)
}

func TestCancelledCyclePublishesNothing(t *testing.T) {

	assert := assert.New(t)

	a := &sun2000modbus.TestInverterReader{PowerKW: 5, EnergyKWh: 100}
	c, st := testCollector(a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.RunCycle(ctx)
	assert.Error(err)
	assert.Equal(uint64(0), st.Snapshot().CycleID, "no partial snapshot published")
}

func TestStatusCarriesDeviceIdentityAndState(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	a := &sun2000modbus.TestInverterReader{PowerKW: 5, EnergyKWh: 100}
	c, st := testCollector(a)

	require.NoError(c.RunCycle(context.Background()))

	status := st.SourceStatuses()[0]
	assert.Equal("SUN2000-10KTL-M1", status.Model)
	assert.Equal("HV3021000000", status.Serial)
	assert.Equal(uint32(10000), status.RatedPowerWatt)
	assert.Equal("On-grid", status.DeviceStatus)
	assert.Equal(38.1, status.InternalTemperature)
}

// A failed cycle must not clear the diagnostic state captured earlier.
func TestFailedCycleKeepsDeviceState(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	a := &sun2000modbus.TestInverterReader{PowerKW: 5, EnergyKWh: 100}
	c, st := testCollector(a)

	require.NoError(c.RunCycle(context.Background()))

	a.FailPower = true
	a.FailEnergy = true
	require.NoError(c.RunCycle(context.Background()))

	status := st.SourceStatuses()[0]
	assert.Equal("On-grid", status.DeviceStatus)
	assert.Equal(uint32(10000), status.RatedPowerWatt)
}

func TestOnPublishHookReceivesSnapshot(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	a := &sun2000modbus.TestInverterReader{PowerKW: 5, EnergyKWh: 100}
	c, _ := testCollector(a)

	var got []uint64
	c.OnPublish(func(snap domain.Snapshot) {
		got = append(got, snap.CycleID)
	})

	require.NoError(c.RunCycle(context.Background()))
	require.NoError(c.RunCycle(context.Background()))

	assert.Equal([]uint64{1, 2}, got)
}
