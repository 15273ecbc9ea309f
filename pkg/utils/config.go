package utils

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"webtoonhub/pkg/database"
)

type Config struct {
	Debug  bool
	Server ServerConfig
	DB     database.Config
	Auth   AuthConfig
	Upload UploadConfig
	S3     S3Config
}

type ServerConfig struct {
	HTTPAddr string
	SyncAddr string
	GRPCAddr string // empty disables the embedded gRPC listener
}

type AuthConfig struct {
	JWTSecret     string
	JWTIssuer     string
	JWTDuration   time.Duration
	WebhookSecret string // empty disables signature verification
}

type UploadConfig struct {
	MaxSize      int64
	Accept       string
	FetchTimeout time.Duration
	SessionIdle  time.Duration
}

type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// Enabled reports whether covers should be pushed to object storage.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Load reads WEBTOONHUB_* environment variables on top of dev defaults.
func Load() Config {
	v := viper.New()
	v.SetEnvPrefix("WEBTOONHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("debug", false)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("sync.addr", ":7070")
	v.SetDefault("grpc.addr", "")
	v.SetDefault("db.path", database.DefaultConfig().Path)

	// dev default (change for demo / production)
	v.SetDefault("jwt.secret", "dev-secret-change-me")
	v.SetDefault("jwt.issuer", "webtoonhub")
	v.SetDefault("jwt.ttl_hours", 24)
	v.SetDefault("webhook.secret", "")

	v.SetDefault("upload.max_size", 100*1024) // 100KB
	v.SetDefault("upload.accept", "image/svg+xml,image/png,image/jpeg,image/jpg,image/gif,image/webp")
	v.SetDefault("upload.fetch_timeout", 10*time.Second)
	v.SetDefault("upload.session_idle", 30*time.Minute)

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.public_base_url", "")

	ttl := v.GetInt("jwt.ttl_hours")
	if ttl <= 0 {
		ttl = 24
	}

	return Config{
		Debug: v.GetBool("debug"),
		Server: ServerConfig{
			HTTPAddr: v.GetString("http.addr"),
			SyncAddr: v.GetString("sync.addr"),
			GRPCAddr: v.GetString("grpc.addr"),
		},
		DB: database.Config{Path: v.GetString("db.path")},
		Auth: AuthConfig{
			JWTSecret:     v.GetString("jwt.secret"),
			JWTIssuer:     v.GetString("jwt.issuer"),
			JWTDuration:   time.Duration(ttl) * time.Hour,
			WebhookSecret: v.GetString("webhook.secret"),
		},
		Upload: UploadConfig{
			MaxSize:      v.GetInt64("upload.max_size"),
			Accept:       v.GetString("upload.accept"),
			FetchTimeout: v.GetDuration("upload.fetch_timeout"),
			SessionIdle:  v.GetDuration("upload.session_idle"),
		},
		S3: S3Config{
			Endpoint:        v.GetString("s3.endpoint"),
			Region:          v.GetString("s3.region"),
			Bucket:          v.GetString("s3.bucket"),
			AccessKeyID:     v.GetString("s3.access_key_id"),
			SecretAccessKey: v.GetString("s3.secret_access_key"),
			PublicBaseURL:   v.GetString("s3.public_base_url"),
		},
	}
}
