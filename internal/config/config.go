package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=fulfillment port=5432 sslmode=disable"

type Config struct {
	AppEnv             string
	HTTPPort           string
	DatabaseDSN        string
	JWTSecret          string
	CORSOrigins        string
	MetricsEnabled     bool
	PrintBridgeURL     string // loopback address, empty disables the bridge
	PrintBridgeTimeout time.Duration
}

func Load() *Config {
	v := viper.New()
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("DATABASE_DSN", defaultDSN)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("PRINT_BRIDGE_URL", "http://127.0.0.1:4567")
	v.SetDefault("PRINT_BRIDGE_TIMEOUT", 2*time.Second)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("[WARN] could not read config file (%s): %v", path, err)
		}
	}

	cfg := &Config{
		AppEnv:             v.GetString("APP_ENV"),
		HTTPPort:           v.GetString("HTTP_PORT"),
		DatabaseDSN:        v.GetString("DATABASE_DSN"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		CORSOrigins:        v.GetString("CORS_ALLOWED_ORIGINS"),
		MetricsEnabled:     v.GetBool("METRICS_ENABLED"),
		PrintBridgeURL:     v.GetString("PRINT_BRIDGE_URL"),
		PrintBridgeTimeout: v.GetDuration("PRINT_BRIDGE_TIMEOUT"),
	}

	if cfg.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET is not set")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET must be at least 32 characters")
	}
	if cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN is using the default value, set your own Postgres connection for production.")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS is using the default value.")
	}

	return cfg
}
