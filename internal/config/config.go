package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppHost string        `mapstructure:"host" validate:"required,url"`
	Listen  string        `mapstructure:"listen" validate:"required"`
	DB      DBConfig      `mapstructure:"db"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Storage StorageConfig `mapstructure:"storage"`
	Tree    TreeConfig    `mapstructure:"tree"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Log     LogConfig     `mapstructure:"log"`
	Cleanup CleanupConfig `mapstructure:"cleanup"`
	CORS    CORSConfig    `mapstructure:"cors"`
}

type DBConfig struct {
	Source string `mapstructure:"source" validate:"required"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret" validate:"required,min=16"`
	AccessTTL  time.Duration `mapstructure:"access_ttl" validate:"gt=0"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl" validate:"gt=0"`
}

type StorageConfig struct {
	Backend        string   `mapstructure:"backend" validate:"oneof=local s3"`
	Path           string   `mapstructure:"path"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes" validate:"gte=1"`
	S3             S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket          string        `mapstructure:"bucket"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	PublicURL       string        `mapstructure:"public_url" validate:"omitempty,url"`
	PresignTTL      time.Duration `mapstructure:"presign_ttl" validate:"gte=0"`
}

type TreeConfig struct {
	Backend  string `mapstructure:"backend" validate:"oneof=postgres mongo memory"`
	MaxDepth int    `mapstructure:"max_depth" validate:"gt=0"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

type CleanupConfig struct {
	// Schedule is a cron spec; empty disables the orphan sweeper.
	Schedule        string `mapstructure:"schedule"`
	BatchSize       int    `mapstructure:"batch_size" validate:"gt=0"`
	SessionSchedule string `mapstructure:"session_schedule"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "http://localhost:8080")
	v.SetDefault("listen", ":8080")
	v.SetDefault("db.source", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_ttl", time.Hour)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.max_upload_bytes", int64(1<<30))
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.key_prefix", "")
	v.SetDefault("storage.s3.public_url", "")
	v.SetDefault("storage.s3.presign_ttl", time.Hour)
	v.SetDefault("tree.backend", "postgres")
	v.SetDefault("tree.max_depth", 256)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "drive")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("cleanup.schedule", "@every 10m")
	v.SetDefault("cleanup.batch_size", 100)
	v.SetDefault("cleanup.session_schedule", "@hourly")
	v.SetDefault("cors.allowed_origins", []string{"*"})
}

func Load() (*Config, error) {
	return load("./configs", "/configs")
}

func load(paths ...string) (*Config, error) {
	v := viper.New()
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("settings")
	v.SetConfigType("yml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
