package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Security   SecurityConfig
	Gateway    GatewayConfig
	Reconciler ReconcilerConfig
	Risk       RiskConfig
	Logging    LoggingConfig
}

// ServerConfig - настройки HTTP сервера операторского API
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// EncryptionKey - ключ AES-256 для хранения секрета шлюза (ровно 32 байта)
	EncryptionKey string
	// OperatorTokenHash - bcrypt-хеш операторского токена для API
	OperatorTokenHash string
}

// GatewayConfig - настройки исполняющего шлюза (моста к терминалу)
type GatewayConfig struct {
	BaseURL string
	// Secret - секрет авторизации шлюза; в env хранится зашифрованным
	Secret string

	RequestTimeout time.Duration
	OrderTimeout   time.Duration // ожидание исполнения одного ордера

	// Retry для критических операций
	MaxRetries   int
	RetryBackoff time.Duration
	MaxElapsed   time.Duration // общий бюджет времени на ретраи

	// Rate limiting вызовов шлюза
	RateLimit int // запросов в секунду
	RateBurst int
}

// ReconcilerConfig - настройки сверки состояния
type ReconcilerConfig struct {
	SyncInterval   time.Duration // период фоновой сверки
	BalanceEpsilon float64       // допуск расхождения баланса
	StartupTimeout time.Duration // бюджет времени на стартовую синхронизацию
}

// RiskConfig - статические параметры риск-движка
type RiskConfig struct {
	Enabled      bool
	FailSafeMode bool
	// KillSwitchPath - путь к файлу аварийного стопа
	KillSwitchPath string
	// CommandCacheSize - ёмкость кэша идемпотентности
	CommandCacheSize int
	// CommandCacheTTL - срок жизни записи кэша
	CommandCacheTTL time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "execgate"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey:     getEnv("ENCRYPTION_KEY", ""),
			OperatorTokenHash: getEnv("OPERATOR_TOKEN_HASH", ""),
		},
		Gateway: GatewayConfig{
			BaseURL:        getEnv("GATEWAY_URL", "http://localhost:9090"),
			Secret:         getEnv("GATEWAY_SECRET", ""),
			RequestTimeout: getEnvAsDuration("GATEWAY_REQUEST_TIMEOUT", 10*time.Second),
			OrderTimeout:   getEnvAsDuration("GATEWAY_ORDER_TIMEOUT", 5*time.Second),
			MaxRetries:     getEnvAsInt("GATEWAY_MAX_RETRIES", 3),
			RetryBackoff:   getEnvAsDuration("GATEWAY_RETRY_BACKOFF", 500*time.Millisecond),
			MaxElapsed:     getEnvAsDuration("GATEWAY_RETRY_MAX_ELAPSED", 30*time.Second),
			RateLimit:      getEnvAsInt("GATEWAY_RATE_LIMIT", 10),
			RateBurst:      getEnvAsInt("GATEWAY_RATE_BURST", 20),
		},
		Reconciler: ReconcilerConfig{
			SyncInterval:   getEnvAsDuration("SYNC_INTERVAL", 30*time.Second),
			BalanceEpsilon: getEnvAsFloat("BALANCE_EPSILON", 0.01),
			StartupTimeout: getEnvAsDuration("STARTUP_SYNC_TIMEOUT", 60*time.Second),
		},
		Risk: RiskConfig{
			Enabled:          getEnvAsBool("RISK_ENABLED", true),
			FailSafeMode:     getEnvAsBool("RISK_FAIL_SAFE", true),
			KillSwitchPath:   getEnv("KILL_SWITCH_PATH", "data/kill_switch"),
			CommandCacheSize: getEnvAsInt("COMMAND_CACHE_SIZE", 1000),
			CommandCacheTTL:  getEnvAsDuration("COMMAND_CACHE_TTL", 1*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для хранения секрета шлюза
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting the gateway secret")
	}

	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	// Без хеша операторского токена API работал бы без авторизации
	if c.Security.OperatorTokenHash == "" {
		return fmt.Errorf("OPERATOR_TOKEN_HASH is required for operator API authentication")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	// Валидация retry параметров
	if c.Gateway.MaxRetries < 0 {
		return fmt.Errorf("GATEWAY_MAX_RETRIES cannot be negative, got %d", c.Gateway.MaxRetries)
	}

	if c.Gateway.MaxRetries > 10 {
		return fmt.Errorf("GATEWAY_MAX_RETRIES should not exceed 10, got %d", c.Gateway.MaxRetries)
	}

	// Валидация таймаутов (должны быть положительными)
	if c.Gateway.RequestTimeout <= 0 {
		return fmt.Errorf("GATEWAY_REQUEST_TIMEOUT must be positive, got %v", c.Gateway.RequestTimeout)
	}

	if c.Gateway.OrderTimeout <= 0 {
		return fmt.Errorf("GATEWAY_ORDER_TIMEOUT must be positive, got %v", c.Gateway.OrderTimeout)
	}

	// Валидация rate limit
	if c.Gateway.RateLimit < 1 {
		return fmt.Errorf("GATEWAY_RATE_LIMIT must be at least 1, got %d", c.Gateway.RateLimit)
	}

	// Валидация сверки
	if c.Reconciler.SyncInterval < time.Second {
		return fmt.Errorf("SYNC_INTERVAL must be at least 1s, got %v", c.Reconciler.SyncInterval)
	}

	if c.Reconciler.BalanceEpsilon < 0 {
		return fmt.Errorf("BALANCE_EPSILON cannot be negative, got %v", c.Reconciler.BalanceEpsilon)
	}

	// Валидация кэша идемпотентности
	if c.Risk.CommandCacheSize < 1 {
		return fmt.Errorf("COMMAND_CACHE_SIZE must be at least 1, got %d", c.Risk.CommandCacheSize)
	}

	if c.Risk.CommandCacheTTL <= 0 {
		return fmt.Errorf("COMMAND_CACHE_TTL must be positive, got %v", c.Risk.CommandCacheTTL)
	}

	if c.Risk.KillSwitchPath == "" {
		return fmt.Errorf("KILL_SWITCH_PATH cannot be empty")
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
