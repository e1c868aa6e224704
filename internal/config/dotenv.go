package config

import (
	"os"
	"path/filepath"

	"github.com/damoang/angple-collab/pkg/logger"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads dotenv files from the working directory and returns the
// files it read. Precedence: process env > .env.local > .env.<APP_ENV> > .env.
// godotenv never overwrites a variable that is already set.
func LoadDotEnv() []string {
	return loadDotEnvIn(".")
}

func loadDotEnvIn(dir string) []string {
	var loaded []string
	load := func(name string) {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return
		}
		if err := godotenv.Load(path); err != nil {
			logger.Warn("Ignoring %s: %v", path, err)
			return
		}
		loaded = append(loaded, path)
	}

	load(".env.local")

	// APP_ENV may only be declared in .env
	env := os.Getenv("APP_ENV")
	if env == "" {
		if values, err := godotenv.Read(filepath.Join(dir, ".env")); err == nil {
			env = values["APP_ENV"]
		}
	}
	if env != "" && env != "local" {
		load(".env." + env)
	}

	load(".env")
	return loaded
}

// ConfigPath returns the YAML config path for an environment name
func ConfigPath(env string) string {
	if env == "" {
		env = "local"
	}
	return filepath.Join("configs", "config."+env+".yaml")
}
