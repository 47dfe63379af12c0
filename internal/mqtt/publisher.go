package mqtt

import (
	"strconv"
	"time"

	"github.com/leggler/PV-Aggregator/internal/config"
	"github.com/leggler/PV-Aggregator/internal/core/domain"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	SENSOR_ID_TOTAL_POWER   = "total_power"
	SENSOR_ID_TOTAL_ENERGY  = "total_energy"
	SENSOR_ID_SUCCESS_COUNT = "success_count"

	publishTimeout = 5 * time.Second
)

// Publisher mirrors each published snapshot to MQTT sensor state
// topics. Broker trouble is logged and retried by paho's auto
// reconnect; it never reaches the collector.
type Publisher struct {
	client *MQTTClient
	logger *zap.Logger
}

func NewPublisher(cfg *config.Config, logger *zap.Logger) *Publisher {
	p := &Publisher{
		logger: logger.With(zap.String("role", "mqtt_publisher")),
	}
	p.client = CreateMQTTClient(cfg, OptsFromConfig(cfg), func(_ mqtt.Client) {
		p.logger.Info("mqtt connected")
		p.client.Publish(p.client.BridgeStateTopic(), MQTT_PAYLOAD_ONLINE, 0, true, p.logPublishError, publishTimeout)
	}, func(_ mqtt.Client, err error) {
		p.logger.Warn("mqtt connection lost", zap.Error(err))
	})
	return p
}

// Start connects to the broker. A broker that is down at startup is
// not fatal; paho keeps retrying in the background.
func (p *Publisher) Start() {
	p.client.Connect(func(err error) {
		if err != nil {
			p.logger.Warn("mqtt connect failed", zap.Error(err))
		}
	}, publishTimeout)
}

// PublishSnapshot is wired as a collector OnPublish hook.
func (p *Publisher) PublishSnapshot(snapshot domain.Snapshot) {
	p.client.Publish(p.client.SensorStateTopic(SENSOR_ID_TOTAL_POWER),
		strconv.FormatFloat(snapshot.TotalPowerKW, 'f', 3, 64), 0, false, p.logPublishError, publishTimeout)
	p.client.Publish(p.client.SensorStateTopic(SENSOR_ID_TOTAL_ENERGY),
		strconv.FormatFloat(snapshot.TotalEnergyKWh, 'f', 2, 64), 0, false, p.logPublishError, publishTimeout)
	p.client.Publish(p.client.SensorStateTopic(SENSOR_ID_SUCCESS_COUNT),
		strconv.FormatUint(uint64(snapshot.SuccessCount), 10), 0, false, p.logPublishError, publishTimeout)
}

func (p *Publisher) Stop() {
	done := make(chan struct{})
	p.client.Publish(p.client.BridgeStateTopic(), MQTT_PAYLOAD_OFFLINE, 0, true, func(err error) {
		if err != nil {
			p.logger.Debug("offline publish failed", zap.Error(err))
		}
		close(done)
	}, publishTimeout)
	select {
	case <-done:
	case <-time.After(publishTimeout):
	}
	p.client.Disconnect(time.Second)
	p.logger.Info("mqtt publisher stopped")
}

func (p *Publisher) logPublishError(err error) {
	if err != nil {
		p.logger.Warn("mqtt publish failed", zap.Error(err))
	}
}
