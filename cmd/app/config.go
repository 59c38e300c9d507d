package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"TH_treasure_hunt/internal/ledger"
	"TH_treasure_hunt/internal/repository"
	"TH_treasure_hunt/internal/service"

	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database repository.Config `yaml:"database"`
	Server   ServerConfig      `yaml:"server"`

	TelegramAuth TelegramAuthConfig `yaml:"telegramAuth"`

	LogLevel string `yaml:"logLevel"`

	Network  string                    `yaml:"network"`
	Networks map[string]ledger.Network `yaml:"networks"`
	// NetworkPinned is set when network came from the file or the environment.
	NetworkPinned bool `mapstructure:"-"`

	Engine    service.EngineConfig `yaml:"engine"`
	Geo       GeoConfig            `yaml:"geo"`
	Blobstore BlobstoreConfig      `yaml:"blobstore"`
	Hunts     HuntsConfig          `yaml:"hunts"`
	Reconcile ReconcileConfig      `yaml:"reconcile"`
	OpenAI    OpenAIConfig         `yaml:"openai"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type TelegramAuthConfig struct {
	BotToken string `yaml:"botToken"`
	Debug    bool   `yaml:"debug"`
}

type GeoConfig struct {
	MaxFixAge   time.Duration `yaml:"maxFixAge"`
	WaitTimeout time.Duration `yaml:"waitTimeout"`
}

type BlobstoreConfig struct {
	KeyMaterial string `yaml:"keyMaterial"`
}

type HuntsConfig struct {
	FilterListing bool     `yaml:"filterListing"`
	Creators      []string `yaml:"creators"`
}

type ReconcileConfig struct {
	Schedule string `yaml:"schedule"`
}

type OpenAIConfig struct {
	APIKey string `yaml:"apiKey"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8888")
	viper.SetDefault("database.driver", repository.DriverSQLite)
	viper.SetDefault("database.path", "treasure_hunt.db")
	viper.SetDefault("network", "paseoAssetHub")
	viper.SetDefault("engine.attempts", 3)
	viper.SetDefault("engine.advanceDelay", service.DefaultAdvanceDelay)
	viper.SetDefault("geo.maxFixAge", 30*time.Second)
	viper.SetDefault("geo.waitTimeout", 10*time.Second)
	viper.SetDefault("reconcile.schedule", "@every 5m")
}

// LoadConfig reads config.yaml when present. APP_ environment variables
// override it, e.g. APP_BLOBSTORE_KEYMATERIAL.
func LoadConfig() (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.NetworkPinned = explicitlySet("network")

	return &cfg, nil
}

func explicitlySet(key string) bool {
	if viper.InConfig(key) {
		return true
	}
	_, ok := os.LookupEnv("APP_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	return ok
}
