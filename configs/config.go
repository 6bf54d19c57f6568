package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Config struct {
	Port             string
	PostgresURI      string
	RedisURI         string
	RedisPassword    string
	RedisDB          int
	NatsURI          string
	R2               R2
	SecretKey        string
	CookieName       string
	PublishTimeout   time.Duration
	QueueConcurrency int
	InstagramAPIBase string
	TiktokAPIBase    string
	WhatsAppAPIBase  string
}

func LoadConfig() *Config {
	return &Config{
		Port:          getEnv("PORT", "3000"),
		PostgresURI:   getEnv("POSTGRES_URI", ""),
		RedisURI:      getEnv("REDIS_URI", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		NatsURI:       getEnv("NATS_URI", ""),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		SecretKey:        getEnv("SECRET_KEY", ""),
		CookieName:       getEnv("COOKIE_NAME", "postqueue_session"),
		PublishTimeout:   getEnvDuration("PUBLISH_TIMEOUT", 5*time.Minute),
		QueueConcurrency: getEnvInt("QUEUE_CONCURRENCY", 10),
		InstagramAPIBase: getEnv("INSTAGRAM_API_BASE", ""),
		TiktokAPIBase:    getEnv("TIKTOK_API_BASE", ""),
		WhatsAppAPIBase:  getEnv("WHATSAPP_API_BASE", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
