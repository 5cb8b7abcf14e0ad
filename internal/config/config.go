package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	AdminKey       string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	SMTPHost string `mapstructure:"SMTP_HOST"`
	SMTPPort string `mapstructure:"SMTP_PORT"`
	SMTPUser string `mapstructure:"SMTP_USER"`
	SMTPPass string `mapstructure:"SMTP_PASS"`
	SMTPFrom string `mapstructure:"SMTP_FROM"`

	GatewayURL   string `mapstructure:"MESSAGE_GATEWAY_URL"`
	GatewayToken string `mapstructure:"MESSAGE_GATEWAY_TOKEN"`

	SendTimeout    time.Duration `mapstructure:"SEND_TIMEOUT"`
	StaleAfter     time.Duration `mapstructure:"NOTIFICATION_STALE_AFTER"`
	GatewayRPS     float64       `mapstructure:"MESSAGE_GATEWAY_RPS"`
	GatewayBurst   int           `mapstructure:"MESSAGE_GATEWAY_BURST"`

	SchedulerEnabled       bool          `mapstructure:"SCHEDULER_ENABLED"`
	DrainInterval          time.Duration `mapstructure:"DRAIN_INTERVAL"`
	DailyJobHour           int           `mapstructure:"DAILY_JOB_HOUR"`
	WeeklyJobWeekday       int           `mapstructure:"WEEKLY_JOB_WEEKDAY"`
	MaintenanceHorizonDays int           `mapstructure:"MAINTENANCE_HORIZON_DAYS"`
	LeadCooldownDays       int           `mapstructure:"LEAD_COOLDOWN_DAYS"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("SEND_TIMEOUT", "15s")
	v.SetDefault("NOTIFICATION_STALE_AFTER", "10m")
	v.SetDefault("MESSAGE_GATEWAY_RPS", 10.0)
	v.SetDefault("MESSAGE_GATEWAY_BURST", 20)

	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("DRAIN_INTERVAL", "5m")
	v.SetDefault("DAILY_JOB_HOUR", 7)
	v.SetDefault("WEEKLY_JOB_WEEKDAY", 1)
	v.SetDefault("MAINTENANCE_HORIZON_DAYS", 30)
	v.SetDefault("LEAD_COOLDOWN_DAYS", 7)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
