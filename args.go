package main

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"campus/api"
)

func ParseArgs() Args {
	// server config
	pflag.String("server-url", "0.0.0.0:8080", "")
	pflag.String("log-level", "info", "debug, info, warn or error")

	// auth config
	pflag.String("auth-public-key-path", "", "Ed25519 public key (PEM) used to verify access tokens")

	// s3 config
	pflag.String("s3-endpoint", "", "")
	pflag.String("s3-bucket", "", "")
	pflag.String("s3-public-base-url", "", "")
	pflag.String("s3-access-key-id", "", "")
	pflag.String("s3-secret-access-key", "", "")
	pflag.Int64("s3-max-image-bytes", 5<<20, "")
	pflag.Int("s3-max-image-dimension", 512, "")
	pflag.Int("s3-max-image-pixels", 4096*4096, "")

	// db config
	pflag.String("db-user", "", "")
	pflag.String("db-password", "", "")
	pflag.String("db-host", "", "")
	pflag.Int("db-port", 5432, "")
	pflag.String("db-database", "", "")
	pflag.String("db-schema", "", "")
	pflag.Bool("db-auto-migrate", false, "")
	pflag.Duration("db-transaction-timeout", 10*time.Second, "")

	// redis config
	pflag.String("redis-addr", "", "")
	pflag.String("redis-password", "", "")
	pflag.Int("redis-db", 15, "")
	pflag.String("redis-key-prefix", "campus:", "")
	pflag.Bool("redis-identity-lock", false, "serialize synchronization of the same identity across replicas")
	pflag.Duration("redis-lock-expiry", 8*time.Second, "")
	pflag.Duration("redis-lock-wait", 10*time.Second, "")

	// redis stream keys
	pflag.String("redis-stream-key-for-profile-events", "profile-events", "")

	// nats config
	pflag.String("nats-url", "nats://127.0.0.1:4222", "")
	pflag.String("nats-subject-prefix", "campus", "")
	pflag.Int("nats-max-reconnects", 10, "")
	pflag.Duration("nats-reconnect-wait", 2*time.Second, "")

	// events config
	pflag.String("events-backend", string(api.EventsBackendNone), "none, redis or nats")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("CAMPUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// initial arguments
	return Args{
		ServerURL: viper.GetString("server-url"),
		LogLevel:  viper.GetString("log-level"),
		ServerConfig: api.ServerConfig{
			Auth: api.AuthConfig{
				PublicKeyPath: viper.GetString("auth-public-key-path"),
			},
			S3: api.S3Config{
				Endpoint:          viper.GetString("s3-endpoint"),
				Bucket:            viper.GetString("s3-bucket"),
				PublicBaseURL:     viper.GetString("s3-public-base-url"),
				AccessKeyID:       viper.GetString("s3-access-key-id"),
				SecretAccessKey:   viper.GetString("s3-secret-access-key"),
				MaxImageBytes:     viper.GetInt64("s3-max-image-bytes"),
				MaxImageDimension: viper.GetInt("s3-max-image-dimension"),
				MaxImagePixels:    viper.GetInt("s3-max-image-pixels"),
			},
			DB: api.DBConfig{
				User:               viper.GetString("db-user"),
				Password:           viper.GetString("db-password"),
				Host:               viper.GetString("db-host"),
				Port:               viper.GetInt("db-port"),
				Database:           viper.GetString("db-database"),
				Schema:             viper.GetString("db-schema"),
				AutoMigrate:        viper.GetBool("db-auto-migrate"),
				TransactionTimeout: viper.GetDuration("db-transaction-timeout"),
			},
			Redis: api.RedisConfig{
				Addr:               viper.GetString("redis-addr"),
				Password:           viper.GetString("redis-password"),
				DB:                 viper.GetInt("redis-db"),
				KeyPrefix:          viper.GetString("redis-key-prefix"),
				EnableIdentityLock: viper.GetBool("redis-identity-lock"),
				LockExpiry:         viper.GetDuration("redis-lock-expiry"),
				LockWait:           viper.GetDuration("redis-lock-wait"),
				StreamKeys: api.RedisStreamKeys{
					ProfileEvents: viper.GetString("redis-stream-key-for-profile-events"),
				},
			},
			NATS: api.NATSConfig{
				URL:           viper.GetString("nats-url"),
				SubjectPrefix: viper.GetString("nats-subject-prefix"),
				MaxReconnects: viper.GetInt("nats-max-reconnects"),
				ReconnectWait: viper.GetDuration("nats-reconnect-wait"),
			},
			Events: api.EventsConfig{
				Backend: api.EventsBackend(viper.GetString("events-backend")),
			},
		},
	}
}

type Args struct {
	ServerURL    string
	LogLevel     string
	ServerConfig api.ServerConfig
}

func (args Args) Validate() bool {
	cfg := args.ServerConfig
	return args.ServerURL != "" &&
		cfg.Auth.PublicKeyPath != "" &&
		cfg.DB.Host != "" && cfg.DB.Database != "" &&
		cfg.S3.Bucket != "" && cfg.S3.PublicBaseURL != "" &&
		(!cfg.Redis.EnableIdentityLock || cfg.Redis.Addr != "")
}

// Level 將 log-level 轉成 slog.Level，無法辨識時使用 info
func (args Args) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(args.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
