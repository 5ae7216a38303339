package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	MQTT     MQTTConfig
	HTTP     HTTPConfig
	SMTP     SMTPConfig
	Device   DeviceConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers       []string
	TopicReadings string
	TopicRelay    string
	NumPartitions int
}

type MQTTConfig struct {
	BrokerURL    string
	ClientID     string
	Username     string
	Password     string
	TopicReport  string
	TopicCommand string
}

type HTTPConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// DeviceConfig holds bootstrap defaults for the single monitored device.
type DeviceConfig struct {
	Timezone      string
	SummaryTime   string // HH:MM, local time for the daily summary rollup
	TempThreshold *float64
	HumiThreshold *float64
	CO2Threshold  *float64
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "envmon_user"),
			Password: getEnv("DB_PASSWORD", "envmon_pass"),
			DBName:   getEnv("DB_NAME", "envmon_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicReadings: getEnv("KAFKA_TOPIC_READINGS", "envmon.readings.raw"),
			TopicRelay:    getEnv("KAFKA_TOPIC_RELAY", "envmon.relay.events"),
			NumPartitions: getEnvAsInt("KAFKA_NUM_PARTITIONS", 1),
		},
		MQTT: MQTTConfig{
			BrokerURL:    getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
			ClientID:     getEnv("MQTT_CLIENT_ID", "envmon-server"),
			Username:     getEnv("MQTT_USERNAME", ""),
			Password:     getEnv("MQTT_PASSWORD", ""),
			TopicReport:  getEnv("MQTT_TOPIC_REPORT", "envmon/store"),
			TopicCommand: getEnv("MQTT_TOPIC_COMMAND", "envmon/update"),
		},
		HTTP: HTTPConfig{
			Port:            getEnvAsInt("HTTP_PORT", 5000),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "envmon-server@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
		},
		Device: DeviceConfig{
			Timezone:      getEnv("DEVICE_TIMEZONE", "Asia/Kuala_Lumpur"),
			SummaryTime:   getEnv("DAILY_SUMMARY_TIME", "00:05"),
			TempThreshold: getEnvAsFloatPtr("DEVICE_TEMP_THRESHOLD"),
			HumiThreshold: getEnvAsFloatPtr("DEVICE_HUMI_THRESHOLD"),
			CO2Threshold:  getEnvAsFloatPtr("DEVICE_CO2_THRESHOLD"),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloatPtr returns nil when the variable is absent or malformed,
// which leaves the corresponding threshold unset.
func getEnvAsFloatPtr(key string) *float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return &value
	}
	return nil
}
