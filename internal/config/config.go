package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// DecoConfig holds the gradient-factor conservatism settings.
type DecoConfig struct {
	GFLow  float64 `json:"gfLow" mapstructure:"gfLow"`
	GFHigh float64 `json:"gfHigh" mapstructure:"gfHigh"`
}

// PlaybackConfig holds the initial playback settings for the engine.
type PlaybackConfig struct {
	Speed          float64 `json:"speed" mapstructure:"speed"`
	StepSizeSec    float64 `json:"stepSizeSec" mapstructure:"stepSizeSec"`
	TickIntervalMs int     `json:"tickIntervalMs" mapstructure:"tickIntervalMs"`
}

// StorageConfig selects and configures the recording backend.
type StorageConfig struct {
	Type           string `json:"type" mapstructure:"type"` // memory | sqlite | postgres
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// InfluxConfig holds live telemetry settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./simdivelogs")

	viper.SetDefault("deco.gfLow", 0.30)
	viper.SetDefault("deco.gfHigh", 0.85)

	viper.SetDefault("playback.speed", 1.0)
	viper.SetDefault("playback.stepSizeSec", 10.0)
	viper.SetDefault("playback.tickIntervalMs", 100)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.outputDir", "./sessions")
	viper.SetDefault("storage.compressOutput", false)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "simdive")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "simdive-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetConfigName("simdive.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat returns a float config value.
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDecoConfig returns the decompression settings.
func GetDecoConfig() DecoConfig {
	return DecoConfig{
		GFLow:  viper.GetFloat64("deco.gfLow"),
		GFHigh: viper.GetFloat64("deco.gfHigh"),
	}
}

// GetPlaybackConfig returns the playback settings.
func GetPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		Speed:          viper.GetFloat64("playback.speed"),
		StepSizeSec:    viper.GetFloat64("playback.stepSizeSec"),
		TickIntervalMs: viper.GetInt("playback.tickIntervalMs"),
	}
}

// GetStorageConfig returns the recording backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:           viper.GetString("storage.type"),
		OutputDir:      viper.GetString("storage.outputDir"),
		CompressOutput: viper.GetBool("storage.compressOutput"),
	}
}

// GetInfluxConfig returns the telemetry settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
	}
}
