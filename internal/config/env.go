package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/incremental/internal/foundation/errors"
)

// envFiles are loaded in order; variables already set in the environment win.
var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads the environment files found in dir. Missing files are skipped.
func loadEnvFiles(dir string) error {
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "failed to load environment file").
				WithContext("path", path).
				Build()
		}
	}
	return nil
}
