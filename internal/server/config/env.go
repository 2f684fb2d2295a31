package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// parseEnv loads an optional dotenv file and then overlays GOPHCHAT_*
// variables onto config. Variables already present in the process
// environment win over the file. Without an explicit envPath a missing
// ./.env is silently ignored.
func parseEnv(config *Config, envPath string) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			panic(err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	if err := envconfig.Process(EnvPrefix, config); err != nil {
		panic(err)
	}
}
