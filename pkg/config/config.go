package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	FirebaseProject string
	Environment     string
	RedisAddr       string
	WSTokenSecret   string
	WSTokenTTL      int64 // seconds
	OfflineQueueCap int
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		FirebaseProject: getEnv("FIREBASE_PROJECT_ID", ""),
		Environment:     getEnv("ENVIRONMENT", "development"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		WSTokenSecret:   getEnv("WS_TOKEN_SECRET", "your-secret-key"),
		WSTokenTTL:      getEnvAsInt64("WS_TOKEN_TTL", 15*60), // 15 minutes
		OfflineQueueCap: int(getEnvAsInt64("OFFLINE_QUEUE_CAP", 100)),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}
