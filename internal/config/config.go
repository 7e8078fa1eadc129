package config

import (
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort           string `env:"HTTP_PORT" env-default:"8080"`
	DatabasePath       string `env:"DATABASE_PATH" env-default:"chain_studio.db"`
	AdminKey           string `env:"ADMIN_KEY" env-required:"true"`
	ProviderBaseURL    string `env:"PROVIDER_BASE_URL" env-default:"https://image.novelai.net"`
	ProviderAPIKey     string `env:"PROVIDER_API_KEY"`
	ProviderTimeoutSec int    `env:"PROVIDER_TIMEOUT_SEC" env-default:"120"`
	GeminiAPIKey       string `env:"GEMINI_API_KEY"`
	LogLevel           string `env:"LOG_LEVEL" env-default:"info"`
}

var AppConfig Config

// LoadConfig populates AppConfig from the environment, reading a .env file
// first if one exists. The provider and Gemini keys are optional: the
// endpoints that need them answer 503 while the key is absent.
func LoadConfig() error {
	_ = godotenv.Load() // Load .env file if it exists

	return cleanenv.ReadEnv(&AppConfig)
}
