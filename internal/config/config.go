package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	Port                  string
	MongoURI              string
	DBName                string
	JWTSecret             string
	AccessTokenTTL        time.Duration
	RefreshTokenTTL       time.Duration
	VerificationCodeTTL   time.Duration
	RedisAddr             string
	RedisPassword         string
	AnonymousCartTTL      time.Duration
	KafkaBrokers          []string
	KafkaOrderTopic       string
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	SMTPFrom              string
	FreeShippingThreshold float64
	ShippingFee           float64
	PublicDir             string
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = FromEnv()
}

// FromEnv builds a Config from the current process environment.
func FromEnv() Config {
	return Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		MongoURI:              getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		DBName:                getEnvOrDefault("DB_NAME", "storefront"),
		JWTSecret:             getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:        getDurationEnv("ACCESS_TOKEN_TTL", 20, time.Minute),
		RefreshTokenTTL:       getDurationEnv("REFRESH_TOKEN_TTL", 7, 24*time.Hour),
		VerificationCodeTTL:   getDurationEnv("VERIFICATION_CODE_TTL", 15, time.Minute),
		RedisAddr:             getEnvOrDefault("REDIS_ADDR", ""),
		RedisPassword:         getEnvOrDefault("REDIS_PASSWORD", ""),
		AnonymousCartTTL:      getDurationEnv("ANON_CART_TTL", 72, time.Hour),
		KafkaBrokers:          getListEnv("KAFKA_BROKERS"),
		KafkaOrderTopic:       getEnvOrDefault("KAFKA_ORDER_TOPIC", "order-events"),
		SMTPHost:              getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort:              getIntEnv("SMTP_PORT", 587),
		SMTPUsername:          getEnvOrDefault("SMTP_USERNAME", ""),
		SMTPPassword:          getEnvOrDefault("SMTP_PASSWORD", ""),
		SMTPFrom:              getEnvOrDefault("SMTP_FROM", "no-reply@storefront.local"),
		FreeShippingThreshold: getFloatEnv("FREE_SHIPPING_THRESHOLD", 500000),
		ShippingFee:           getFloatEnv("SHIPPING_FEE", 30000),
		PublicDir:             getEnvOrDefault("PUBLIC_DIR", "./public"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	return time.Duration(getIntEnv(key, defaultValue)) * unit
}

func getIntEnv(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
