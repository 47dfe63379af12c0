package mqtt

import (
	"testing"

	"github.com/leggler/PV-Aggregator/internal/config"

	"github.com/stretchr/testify/assert"
)

func testConfig() *config.Config {
	return &config.Config{
		MQTT: config.MQTTConfig{
			Enable:    true,
			Host:      "127.0.0.1",
			Port:      1883,
			BaseTopic: "pvagg",
		},
	}
}

func TestBridgeStateTopic(t *testing.T) {

	assert := assert.New(t)

	c := CreateMQTTClient(testConfig(), OptsFromConfig(testConfig()), nil, nil)

	assert.Equal("pvagg/bridge/state", c.BridgeStateTopic())
}

func TestSensorStateTopic(t *testing.T) {

	assert := assert.New(t)

	c := CreateMQTTClient(testConfig(), OptsFromConfig(testConfig()), nil, nil)

	assert.Equal("pvagg/sensor/total_power/state", c.SensorStateTopic(SENSOR_ID_TOTAL_POWER))
	assert.Equal("pvagg/sensor/success_count/state", c.SensorStateTopic(SENSOR_ID_SUCCESS_COUNT))
}

func TestOptsFromConfigLWT(t *testing.T) {

	assert := assert.New(t)

	opts := OptsFromConfig(testConfig())

	assert.True(opts.WillEnabled)
	assert.True(opts.WillRetained)
	assert.Equal("pvagg/bridge/state", opts.WillTopic)
	assert.Equal([]byte(MQTT_PAYLOAD_OFFLINE), opts.WillPayload)
}
