package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string

	// Scheduling engine
	ScheduleConfigPath   string
	DiversityTargetsPath string
	HistoryMaxRecords    int
	HistoryMaxAge        time.Duration
	HistoryCacheTTL      time.Duration
	MaxPerPlatform       int
	MaxSlotAttempts      int

	// Publisher worker
	DispatchInterval time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "pulsefeed"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "pulsefeed123"),
		PostgresDB:       getEnv("POSTGRES_DB", "pulsefeed"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "pulsefeed-engine"),

		ScheduleConfigPath:   getEnv("SCHEDULE_CONFIG_PATH", ""),
		DiversityTargetsPath: getEnv("DIVERSITY_TARGETS_PATH", ""),
		HistoryMaxRecords:    getIntEnv("HISTORY_MAX_RECORDS", 50),
		HistoryMaxAge:        getDuration("HISTORY_MAX_AGE", 72*time.Hour),
		HistoryCacheTTL:      getDuration("HISTORY_CACHE_TTL", 5*time.Minute),
		MaxPerPlatform:       getIntEnv("SCHEDULE_MAX_PER_PLATFORM", 2),
		MaxSlotAttempts:      getIntEnv("SCHEDULE_MAX_SLOT_ATTEMPTS", 3),

		DispatchInterval: getDuration("DISPATCH_INTERVAL", time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
