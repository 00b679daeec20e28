package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the full application configuration
type Config struct {
	App struct {
		Port            string        `mapstructure:"port"`
		Env             string        `mapstructure:"env"`
		ReadTimeout     time.Duration `mapstructure:"readTimeout"`
		WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	} `mapstructure:"app"`
	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Enabled bool     `mapstructure:"enabled"`
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Billing struct {
		APIKey        string            `mapstructure:"apiKey"`
		SigningSecret string            `mapstructure:"signingSecret"`
		BaseURL       string            `mapstructure:"baseUrl"`
		SuccessURL    string            `mapstructure:"successUrl"`
		Variants      map[string]string `mapstructure:"variants"` // variant id -> plan name
	} `mapstructure:"billing"`
	Auth struct {
		JWTSecret string `mapstructure:"jwtSecret"`
	} `mapstructure:"auth"`
}

// Load reads configuration from config.yaml plus environment variables.
// A .env file is honored outside production.
func Load(envPath string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("app.port", "8080")
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.readTimeout", 15*time.Second)
	viper.SetDefault("app.writeTimeout", 15*time.Second)
	viper.SetDefault("app.shutdownTimeout", 30*time.Second)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("kafka.enabled", false)
}
