// Package config загружает конфигурацию сервера из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// InsecureJWTSecret — секрет по умолчанию для локальной разработки.
// В production с ним сервер не стартует.
const InsecureJWTSecret = "levelupsolo-dev-secret-change-me"

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// Разрешённые Origin для websocket (через запятую). Пусто — проверка отключена.
	WSAllowedOrigins []string `envconfig:"WS_ALLOWED_ORIGINS"`

	// --- Database ---
	// DATABASE_URL имеет приоритет над DB_* (так его выдают хостинги).
	DatabaseURL string `envconfig:"DATABASE_URL"`
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"levelup"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"levelup"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	// --- Auth ---
	JWTSecret string        `envconfig:"JWT_SECRET" default:"levelupsolo-dev-secret-change-me"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"168h"`

	// --- AI ---
	// Без ключа все ИИ-эндпоинты работают в режиме fallback
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Asia/Shanghai"`

	// --- Progression ---
	EnergyMaxBalls int `envconfig:"ENERGY_MAX_BALLS" default:"18"`
	// Путь к YAML с таблицами наград. Пусто — встроенные таблицы.
	ProgressionConfig string `envconfig:"PROGRESSION_CONFIG"`

	// --- Telegram ---
	// Пустой токен — бот-компаньон не запускается
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Demo ---
	// Сколько живёт неактивная демо-сессия в памяти
	DemoTTL time.Duration `envconfig:"DEMO_TTL" default:"2h"`

	// --- Feature Flags ---
	FeatureAIEnabled        bool `envconfig:"FEATURE_AI_ENABLED" default:"true"`
	FeatureDemoEnabled      bool `envconfig:"FEATURE_DEMO_ENABLED" default:"true"`
	FeatureRemindersEnabled bool `envconfig:"FEATURE_REMINDERS_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// DatabaseConfigured — задано ли подключение к PostgreSQL.
// Без него сервер работает только в демо-режиме.
func (c *Config) DatabaseConfigured() bool {
	return c.DatabaseURL != "" || c.DBPassword != ""
}

// IsProduction сообщает, что сервер запущен в боевом окружении.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// BotEnabled — задан ли токен бота-компаньона.
func (c *Config) BotEnabled() bool {
	return c.TelegramBotToken != ""
}

func (c *Config) Validate() error {
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.EnergyMaxBalls <= 0 {
		return fmt.Errorf("ENERGY_MAX_BALLS должен быть > 0")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL должен быть > 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("некорректные RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET не задан")
	}
	if c.JWTSecret == InsecureJWTSecret {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET по умолчанию запрещён в production")
		}
		log.Warn("JWT_SECRET не задан — используется небезопасный секрет для разработки")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
