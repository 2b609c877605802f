package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/mmc5983/mmc5983"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicMag      string
	PayloadFormat string // "json" or "cbor"

	// Magnetometer hardware
	MagBus        string // "i2c", "spi" or "sim"
	MagI2CBus     string
	MagI2CAddr    uint16
	MagSPIDevice  string
	MagSPISpeedHz int64

	// Magnetometer acquisition
	MagMode             string // "oneshot" or "continuous"
	MagBandwidthHz      int
	MagODRHz            int
	MagAutoSRPeriod     int // samples between automatic SET pulses, 0 = off
	MagCalibrateOnStart bool
	MagSampleInterval   int // milliseconds
	MagTempEvery        int // samples between temperature reads, 0 = never

	// Simulator
	SimFieldGauss [3]float64

	// Web Server
	WebServerPort     int
	RegisterDebugPort int

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		MQTTClientIDProducer:  "mmc5983-producer",
		MQTTClientIDConsole:   "mmc5983-console",
		MQTTClientIDWeb:       "mmc5983-web",
		MQTTClientIDDisplay:   "mmc5983-display",
		TopicMag:              "mmc5983/field",
		PayloadFormat:         "json",
		MagBus:                "i2c",
		MagI2CBus:             "1",
		MagI2CAddr:            mmc5983.I2CAddr,
		MagSPIDevice:          "/dev/spidev0.0",
		MagSPISpeedHz:         10_000_000,
		MagMode:               "oneshot",
		MagBandwidthHz:        100,
		MagODRHz:              10,
		MagSampleInterval:     100,
		SimFieldGauss:         [3]float64{0.2, 0, 0.4},
		WebServerPort:         8080,
		RegisterDebugPort:     8081,
		DisplayI2CBus:         "1",
		DisplayUpdateInterval: 500,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default. Empty lines and lines
// starting with # are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseAddr(key, value string) (uint16, error) {
	v, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return uint16(v), nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_MAG":
		c.TopicMag = value
	case "PAYLOAD_FORMAT":
		c.PayloadFormat = strings.ToLower(value)

	// Magnetometer hardware
	case "MAG_BUS":
		c.MagBus = strings.ToLower(value)
	case "MAG_I2C_BUS":
		c.MagI2CBus = value
	case "MAG_I2C_ADDR":
		c.MagI2CAddr, err = parseAddr(key, value)
	case "MAG_SPI_DEVICE":
		c.MagSPIDevice = value
	case "MAG_SPI_SPEED_HZ":
		c.MagSPISpeedHz, err = strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAG_SPI_SPEED_HZ %q: %w", value, err)
		}

	// Magnetometer acquisition
	case "MAG_MODE":
		c.MagMode = strings.ToLower(value)
	case "MAG_BANDWIDTH_HZ":
		c.MagBandwidthHz, err = parseInt(key, value)
	case "MAG_ODR_HZ":
		c.MagODRHz, err = parseInt(key, value)
	case "MAG_AUTO_SR_PERIOD":
		c.MagAutoSRPeriod, err = parseInt(key, value)
	case "MAG_CALIBRATE_ON_START":
		c.MagCalibrateOnStart, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid MAG_CALIBRATE_ON_START %q: %w", value, err)
		}
	case "MAG_SAMPLE_INTERVAL":
		c.MagSampleInterval, err = parseInt(key, value)
	case "MAG_TEMP_EVERY":
		c.MagTempEvery, err = parseInt(key, value)

	// Simulator
	case "SIM_FIELD_GAUSS":
		parts := strings.Split(value, ",")
		if len(parts) != 3 {
			return fmt.Errorf("SIM_FIELD_GAUSS must be x,y,z, got %q", value)
		}
		for i, p := range parts {
			v, perr := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if perr != nil {
				return fmt.Errorf("invalid SIM_FIELD_GAUSS %q: %w", value, perr)
			}
			c.SimFieldGauss[i] = v
		}

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)
	case "REGISTER_DEBUG_PORT":
		c.RegisterDebugPort, err = parseInt(key, value)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks required fields and value ranges.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	switch c.PayloadFormat {
	case "json", "cbor":
	default:
		return fmt.Errorf("PAYLOAD_FORMAT must be json or cbor, got %q", c.PayloadFormat)
	}
	switch c.MagBus {
	case "i2c", "spi", "sim":
	default:
		return fmt.Errorf("MAG_BUS must be i2c, spi or sim, got %q", c.MagBus)
	}
	switch c.MagMode {
	case "oneshot", "continuous":
	default:
		return fmt.Errorf("MAG_MODE must be oneshot or continuous, got %q", c.MagMode)
	}
	if _, err := c.Bandwidth(); err != nil {
		return fmt.Errorf("MAG_BANDWIDTH_HZ: %w", err)
	}
	if _, err := c.OutputDataRate(); err != nil {
		return fmt.Errorf("MAG_ODR_HZ: %w", err)
	}
	if c.MagAutoSRPeriod != 0 {
		if _, err := c.SetResetPeriod(); err != nil {
			return fmt.Errorf("MAG_AUTO_SR_PERIOD: %w", err)
		}
	}
	if c.MagSPISpeedHz <= 0 {
		return fmt.Errorf("MAG_SPI_SPEED_HZ must be positive, got %d", c.MagSPISpeedHz)
	}
	if c.MagSampleInterval <= 0 {
		return fmt.Errorf("MAG_SAMPLE_INTERVAL must be positive, got %d", c.MagSampleInterval)
	}
	if c.MagTempEvery < 0 {
		return fmt.Errorf("MAG_TEMP_EVERY must not be negative, got %d", c.MagTempEvery)
	}
	return nil
}

// Bandwidth maps MAG_BANDWIDTH_HZ.
func (c *Config) Bandwidth() (mmc5983.Bandwidth, error) {
	return mmc5983.BandwidthFromHz(c.MagBandwidthHz)
}

// OutputDataRate maps MAG_ODR_HZ.
func (c *Config) OutputDataRate() (mmc5983.OutputDataRate, error) {
	return mmc5983.OutputDataRateFromHz(c.MagODRHz)
}

// SetResetPeriod maps MAG_AUTO_SR_PERIOD.
func (c *Config) SetResetPeriod() (mmc5983.SetResetPeriod, error) {
	return mmc5983.SetResetPeriodFromSamples(c.MagAutoSRPeriod)
}

// ContinuousConfig builds the settings for continuous mode. Values have
// been checked by validate.
func (c *Config) ContinuousConfig() mmc5983.ContinuousConfig {
	rate, _ := c.OutputDataRate()
	cc := mmc5983.ContinuousConfig{Rate: rate}
	if c.MagAutoSRPeriod != 0 {
		cc.AutoSetReset = true
		cc.Period, _ = c.SetResetPeriod()
	}
	return cc
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the global configuration. Tools built without a config
// file and tests use it.
func SetGlobal(c *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	globalConfig = c
}
