package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leggler/PV-Aggregator/internal/core/domain"
	"github.com/leggler/PV-Aggregator/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {

	assert := assert.New(t)

	s := &Server{store: store.NewStore()}
	srv := httptest.NewServer(s.RegisterRoutes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthcheck")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(http.StatusOK, resp.StatusCode)
}

func TestStatusBeforeFirstCycle(t *testing.T) {

	assert := assert.New(t)

	s := &Server{store: store.NewStore()}
	srv := httptest.NewServer(s.RegisterRoutes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(uint64(0), body.CycleID)
	assert.Equal(float64(0), body.TotalPowerKW)
	assert.Nil(body.GeneratedAt)
	assert.NotNil(body.Sources)
	assert.Empty(body.Sources)
}

func TestStatusRendersSnapshotAndSources(t *testing.T) {

	assert := assert.New(t)

	st := store.NewStore()
	now := time.Now()
	st.Publish(domain.Snapshot{
		CycleID:        3,
		TotalPowerKW:   10,
		TotalEnergyKWh: 300.5,
		SuccessCount:   5,
		GeneratedAt:    now,
	}, []domain.SourceStatus{
		{Name: "inverter_a", LastPowerKW: 5, Connected: true, LastSuccessAt: &now},
		{Name: "inverter_b", LastPowerKW: 3, Connected: false, ConsecutiveFailures: 1, TotalFailures: 7},
	})

	s := &Server{store: st}
	srv := httptest.NewServer(s.RegisterRoutes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(uint64(3), body.CycleID)
	assert.Equal(uint32(5), body.SuccessCount)
	require.Len(t, body.Sources, 2)
	assert.Equal("inverter_a", body.Sources[0].Name)
	assert.True(body.Sources[0].Connected)
	assert.Nil(body.Sources[1].LastSuccessAt)
	assert.Equal(uint64(7), body.Sources[1].TotalFailures)
}

func TestStatusRendersDeviceIdentity(t *testing.T) {

	assert := assert.New(t)

	st := store.NewStore()
	now := time.Now()
	st.Publish(domain.Snapshot{CycleID: 1, SuccessCount: 2, GeneratedAt: now}, []domain.SourceStatus{
		{
			Name:                "inverter_a",
			Connected:           true,
			LastSuccessAt:       &now,
			Model:               "SUN2000-10KTL-M1",
			Serial:              "HV3021000000",
			RatedPowerWatt:      10000,
			DeviceStatus:        "On-grid",
			InternalTemperature: 38.1,
		},
	})

	s := &Server{store: st}
	srv := httptest.NewServer(s.RegisterRoutes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw struct {
		Sources []map[string]any `json:"sources"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	require.Len(t, raw.Sources, 1)

	src := raw.Sources[0]
	assert.Equal("SUN2000-10KTL-M1", src["model"])
	assert.Equal("HV3021000000", src["serial"])
	assert.Equal(float64(10000), src["rated_power_watt"])
	assert.Equal("On-grid", src["device_status"])
	assert.Equal(38.1, src["internal_temperature"])
}
