package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is loaded from the environment. Only DATABASE_URL is
// mandatory; Telegram and Midtrans stay disabled when unset.
type Config struct {
	Port        string
	DatabaseURL string
	StaticDir   string

	TelegramBotToken string
	TelegramChatID   string

	AdminUsername string
	AdminPassword string
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("STATIC_DIR", "public")

	cfg := &Config{
		Port:             v.GetString("PORT"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		StaticDir:        v.GetString("STATIC_DIR"),
		TelegramBotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   v.GetString("TELEGRAM_CHAT_ID"),
		AdminUsername:    v.GetString("ADMIN_USERNAME"),
		AdminPassword:    v.GetString("ADMIN_PASSWORD"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	return cfg, nil
}
