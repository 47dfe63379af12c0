package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Port     uint `mapstructure:"port"`
	HttpLog  bool `mapstructure:"http_log"`

	BusServer BusServerConfig `mapstructure:"bus_server"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Sources   []SourceConfig  `mapstructure:"sources"`
}

// SourceConfig identifies one SUN2000 inverter to poll. Immutable after
// load.
type SourceConfig struct {
	Name   string `mapstructure:"name"`
	Host   string `mapstructure:"host"`
	Port   uint   `mapstructure:"port"`
	UnitId uint   `mapstructure:"unit_id"`
}

type MonitorConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
	ReadTimeoutMillis  uint32 `mapstructure:"read_timeout_millis"`
	MaxConcurrentPolls int    `mapstructure:"max_concurrent_polls"`
}

type BusServerConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	Port          uint   `mapstructure:"port"`
	UnitId        uint   `mapstructure:"unit_id"`
	MaxClients    uint   `mapstructure:"max_clients"`
}

type MQTTConfig struct {
	Enable    bool   `mapstructure:"enable"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	BaseTopic string `mapstructure:"base_topic"`
}

func (c MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

func (c MonitorConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMillis) * time.Millisecond
}

func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return errors.New("config param sources must list at least one inverter")
	}
	seen := map[string]bool{}
	for i := range c.Sources {
		name, err := CheckSourceName(c.Sources[i].Name)
		if err != nil {
			return err
		}
		if seen[name] {
			return fmt.Errorf("duplicate source name %q", name)
		}
		seen[name] = true
		// the normalized name is the one used in logs, topics and status
		c.Sources[i].Name = name
		if c.Sources[i].Host == "" {
			return fmt.Errorf("source %q: host is required", name)
		}
		if c.Sources[i].UnitId > 247 {
			return fmt.Errorf("source %q: unit_id must be <= 247", name)
		}
	}
	if c.Monitor.PollIntervalMillis < 1000 {
		return errors.New("config param monitor.poll_interval_millis should be >= 1000")
	}
	if c.Monitor.ReadTimeoutMillis == 0 {
		return errors.New("config param monitor.read_timeout_millis should be > 0")
	}
	if c.Monitor.MaxConcurrentPolls <= 0 {
		return errors.New("config param monitor.max_concurrent_polls should be > 0")
	}
	if c.BusServer.UnitId == 0 || c.BusServer.UnitId > 247 {
		return errors.New("config param bus_server.unit_id should be in 1..247")
	}
	if c.MQTT.Enable {
		baseTopic, err := CheckMQTTTopic(c.MQTT.BaseTopic)
		if err != nil {
			return errors.New("invalid base topic. can only contain letters, numbers and underscores")
		}
		c.MQTT.BaseTopic = baseTopic
	}
	return nil
}

// CheckSourceName lowercases and validates a source name so it can be
// used as a map key, log field and MQTT topic fragment.
func CheckSourceName(name string) (string, error) {
	lower := strings.ToLower(name)
	nameRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := nameRegexp.FindAllStringSubmatch(lower, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid source name. can only contain letters, numbers and underscores")
	}
	return lower, nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
