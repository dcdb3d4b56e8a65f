package config

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig — настройки процесса, не связанные с БД.
type AppConfig struct {
	HTTPAddr string
	GRPCAddr string

	// Верхняя граница на транзакцию создания брони.
	AdmissionTimeout time.Duration

	JWTSecret   string
	CORSOrigins []string

	RabbitURI         string // пусто: отправка в брокер выключена, outbox только копится
	RabbitExchange    string
	RabbitQueuePrefix string
	OutboxBatchSize   int
	OutboxMaxRetry    int
	OutboxIntervalSec int
}

// LoadEnvFile подхватывает .env, если он есть. Отсутствие файла не ошибка.
func LoadEnvFile(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		log.Printf("config: .env not loaded: %v", err)
	}
}

func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:          getEnv("GRPC_ADDR", ":50051"),
		AdmissionTimeout:  getEnvDuration("ADMISSION_TIMEOUT", 5*time.Second),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		CORSOrigins:       getEnvList("CORS_ORIGINS", []string{"*"}),
		RabbitURI:         getEnv("RABBITMQ_URI", ""),
		RabbitExchange:    getEnv("RABBITMQ_EXCHANGE", "reservations.events"),
		RabbitQueuePrefix: getEnv("RABBITMQ_QUEUE_PREFIX", "reservations.dispatcher.v1"),
		OutboxBatchSize:   getEnvInt("OUTBOX_BATCH_SIZE", 50),
		OutboxMaxRetry:    getEnvInt("OUTBOX_MAX_RETRY", 10),
		OutboxIntervalSec: getEnvInt("OUTBOX_INTERVAL_SEC", 5),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("invalid app config: JWT_SECRET must not be empty")
	}
	if cfg.AdmissionTimeout <= 0 {
		return nil, errors.New("invalid app config: ADMISSION_TIMEOUT must be positive")
	}
	if cfg.OutboxIntervalSec <= 0 {
		cfg.OutboxIntervalSec = 5
	}

	return cfg, nil
}
