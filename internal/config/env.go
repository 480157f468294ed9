package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Env holds process level settings read from the environment (CLASHPROFILE_*),
// optionally seeded from a .env file.
type Env struct {
	ConfigPath string `envconfig:"CONFIG" default:"config.yml"`
	DataDir    string `envconfig:"DATA" default:"data"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"console"`
}

func LoadEnv() (Env, error) {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	var env Env
	if err := envconfig.Process("CLASHPROFILE", &env); err != nil {
		return Env{}, err
	}
	return env, nil
}
