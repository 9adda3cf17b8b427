package api

import "time"

type ServerConfig struct {
	Auth   AuthConfig
	S3     S3Config
	DB     DBConfig
	Redis  RedisConfig
	NATS   NATSConfig
	Events EventsConfig
}

type AuthConfig struct {
	// PublicKeyPath 是驗證 access token 用的 Ed25519 公鑰 PEM 檔
	PublicKeyPath string
}

type S3Config struct {
	AccessKeyID       string
	SecretAccessKey   string
	Endpoint          string
	Bucket            string
	PublicBaseURL     string
	MaxImageBytes     int64
	MaxImageDimension int
	// MaxImagePixels 限制解碼前標頭宣告的寬乘高
	MaxImagePixels int
}

type DBConfig struct {
	User               string
	Password           string
	Host               string
	Port               int
	Database           string
	Schema             string
	AutoMigrate        bool
	TransactionTimeout time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	// EnableIdentityLock 開啟後同一個身份的同步會跨副本序列化
	EnableIdentityLock bool
	LockExpiry         time.Duration
	LockWait           time.Duration

	StreamKeys RedisStreamKeys
}

type RedisStreamKeys struct {
	ProfileEvents string
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

type EventsBackend string

const (
	EventsBackendNone  EventsBackend = "none"
	EventsBackendRedis EventsBackend = "redis"
	EventsBackendNATS  EventsBackend = "nats"
)

type EventsConfig struct {
	Backend EventsBackend
}
