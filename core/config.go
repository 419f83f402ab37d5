package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

type (
	Config struct {
		Env              string
		Debug            bool
		TestMode         bool
		AppName          string
		Build            string
		WorkDir          string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string
		PrincipalEmail   string

		Server  ServerConfig
		Storage StorageConfig
		Payment PaymentConfig
	}

	ServerConfig struct {
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	StorageConfig struct {
		Backend      string // memory (default), sqlite, postgres, redis
		DSN          string // sqlite file path or postgres URL
		RedisAddr    string
		RedisPrefix  string
		RedisChannel string
	}

	PaymentConfig struct {
		SimulatedDelay time.Duration // how long simulated gateways take to confirm
	}
)

// NewConfig loads the configuration from the environment (and `config/.env.<env>` if it exists).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Royal Academy")
	v.SetDefault("build", "dev")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("principalEmail", "principal@royalacademy.local")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("serverDisableReqLogs", false)
	v.SetDefault("storageBackend", StorageMemory)
	v.SetDefault("storageDSN", "royalacademy.db")
	v.SetDefault("redisAddr", "localhost:6379")
	v.SetDefault("redisPrefix", "royalacademy:")
	v.SetDefault("redisChannel", "royalacademy:changes")
	v.SetDefault("paymentSimulatedDelay", 2*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		WorkDir:          wd,
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		PrincipalEmail:   CleanString(v.GetString("principalEmail"), true /* lower */),
		Server: ServerConfig{
			Address:         v.GetString("serverAddress"),
			DebugHost:       v.GetString("serverDebugHost"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
			DisableReqLogs:  v.GetBool("serverDisableReqLogs"),
		},
		Storage: StorageConfig{
			Backend:      strings.ToLower(v.GetString("storageBackend")),
			DSN:          v.GetString("storageDSN"),
			RedisAddr:    v.GetString("redisAddr"),
			RedisPrefix:  v.GetString("redisPrefix"),
			RedisChannel: v.GetString("redisChannel"),
		},
		Payment: PaymentConfig{
			SimulatedDelay: v.GetDuration("paymentSimulatedDelay"),
		},
	}
}
