package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv  string `envconfig:"APP_ENV" default:"dev"`
	TZ      string `envconfig:"TZ" default:"America/New_York"`
	Port    int    `envconfig:"PORT" default:"8080"`
	DataDir string `envconfig:"DATA_DIR"`
	// MetricsAddr: отдельный адрес для /metrics. Пусто, метрики только на основном порту.
	MetricsAddr    string        `envconfig:"METRICS_ADDR"`
	RequestTimeout time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"15s"`
	// Seed фиксирует генератор случайных чисел. 0: сид от текущего времени.
	Seed uint64 `envconfig:"SEED" default:"0"`

	Live struct {
		LowThreshold     float64       `envconfig:"LIVE_LOW_THRESHOLD" default:"0.25"`
		HighThreshold    float64       `envconfig:"LIVE_HIGH_THRESHOLD" default:"0.6"`
		LowDelayMin      time.Duration `envconfig:"LIVE_LOW_DELAY_MIN" default:"3s"`
		LowDelayMax      time.Duration `envconfig:"LIVE_LOW_DELAY_MAX" default:"7s"`
		MidDelayMin      time.Duration `envconfig:"LIVE_MID_DELAY_MIN" default:"10s"`
		MidDelayMax      time.Duration `envconfig:"LIVE_MID_DELAY_MAX" default:"20s"`
		HighDelayMin     time.Duration `envconfig:"LIVE_HIGH_DELAY_MIN" default:"25s"`
		HighDelayMax     time.Duration `envconfig:"LIVE_HIGH_DELAY_MAX" default:"45s"`
		HighSkip         float64       `envconfig:"LIVE_HIGH_SKIP" default:"0.7"`
		PartnerInterval  time.Duration `envconfig:"PARTNER_INTERVAL" default:"35s"`
		UnreadClearDelay time.Duration `envconfig:"UNREAD_CLEAR_DELAY" default:"1500ms"`
		Disabled         bool          `envconfig:"LIVE_DISABLED" default:"false"`
	} `envconfig:""`

	Backlog struct {
		Max          int    `envconfig:"BACKLOG_MAX" default:"200"`
		WorkdaysCron string `envconfig:"BACKLOG_WORKDAYS_CRON" default:"* * * * 1-5"`
	} `envconfig:""`

	AI struct {
		Provider      string        `envconfig:"AI_PROVIDER" default:"openai"`
		OpenAIKey     string        `envconfig:"OPENAI_API_KEY"`
		OpenAIBaseURL string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
		OpenAIModel   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
		GeminiKey     string        `envconfig:"GEMINI_API_KEY"`
		GeminiModel   string        `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
		Timeout       time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
		RPS           float64       `envconfig:"AI_RPS" default:"1"`
		Burst         int           `envconfig:"AI_BURST" default:"2"`
	} `envconfig:""`

	Redis struct {
		Addr    string `envconfig:"REDIS_ADDR"`
		Channel string `envconfig:"REDIS_EVENTS_CHANNEL" default:"slack-mock.events"`
	} `envconfig:""`

	Rabbit struct {
		URL      string `envconfig:"RABBITMQ_URL"`
		Exchange string `envconfig:"RABBITMQ_EXCHANGE" default:"slack-mock.events"`
	} `envconfig:""`

	Telegram struct {
		Token           string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL      string `envconfig:"TG_WEBHOOK_URL"`
		WebhookSecret   string `envconfig:"TG_WEBHOOK_SECRET"`
		PresenterChatID int64  `envconfig:"TG_PRESENTER_CHAT_ID"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения. Файл .env, если есть, читается заранее.
func Load() AppConfig {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
