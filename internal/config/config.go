package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	DeviceID      string
	I2CBus        string
	SensorAddress uint16
	PollInterval  time.Duration

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string

	ReconnectMinInterval time.Duration
	ReconnectMaxInterval time.Duration

	ReadingsDB   string // empty disables the local readings store
	StatusLEDPin string // empty disables the status LED
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	deviceID := strings.TrimSpace(os.Getenv("DEVICE_ID"))
	if deviceID == "" {
		deviceID = "luxgate"
	}

	// Empty selects the first registered bus, usually /dev/i2c-1.
	i2cBus := strings.TrimSpace(os.Getenv("I2C_BUS"))

	sensorAddressStr := strings.TrimSpace(os.Getenv("TSL2561_ADDRESS"))
	if sensorAddressStr == "" {
		sensorAddressStr = "0x39"
	}
	sensorAddress, err := strconv.ParseUint(sensorAddressStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid TSL2561_ADDRESS %q: %w", sensorAddressStr, err)
	}

	pollIntervalStr := strings.TrimSpace(os.Getenv("POLL_INTERVAL"))
	if pollIntervalStr == "" {
		pollIntervalStr = "5s"
	}
	pollInterval, err := time.ParseDuration(pollIntervalStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid POLL_INTERVAL %q: %w", pollIntervalStr, err)
	}
	if pollInterval <= 0 {
		return Config{}, fmt.Errorf("POLL_INTERVAL must be positive, got %v", pollInterval)
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if mqttBroker == "" {
		mqttBroker = "localhost"
	}

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = deviceID
	}

	reconnectMinStr := strings.TrimSpace(os.Getenv("RECONNECT_MIN_INTERVAL"))
	if reconnectMinStr == "" {
		reconnectMinStr = "60s"
	}
	reconnectMin, err := time.ParseDuration(reconnectMinStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid RECONNECT_MIN_INTERVAL %q: %w", reconnectMinStr, err)
	}

	reconnectMaxStr := strings.TrimSpace(os.Getenv("RECONNECT_MAX_INTERVAL"))
	if reconnectMaxStr == "" {
		reconnectMaxStr = "600s"
	}
	reconnectMax, err := time.ParseDuration(reconnectMaxStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid RECONNECT_MAX_INTERVAL %q: %w", reconnectMaxStr, err)
	}
	if reconnectMin <= 0 || reconnectMax < reconnectMin {
		return Config{}, fmt.Errorf("reconnect intervals must satisfy 0 < min <= max, got min=%v max=%v",
			reconnectMin, reconnectMax)
	}

	readingsDB := strings.TrimSpace(os.Getenv("READINGS_DB"))
	statusLEDPin := strings.TrimSpace(os.Getenv("STATUS_LED_PIN"))

	return Config{
		AppEnv:               appEnv,
		LogLevel:             level,
		DeviceID:             deviceID,
		I2CBus:               i2cBus,
		SensorAddress:        uint16(sensorAddress),
		PollInterval:         pollInterval,
		MQTTBroker:           mqttBroker,
		MQTTPort:             mqttPort,
		MQTTClientID:         mqttClientID,
		ReconnectMinInterval: reconnectMin,
		ReconnectMaxInterval: reconnectMax,
		ReadingsDB:           readingsDB,
		StatusLEDPin:         statusLEDPin,
	}, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
