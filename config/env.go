package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const envPrefix = "env:"

// ResolveSecret expands "env:VAR" to the value of VAR. Other values are
// returned unchanged.
func ResolveSecret(value string) string {
	if name, ok := strings.CutPrefix(value, envPrefix); ok {
		return os.Getenv(strings.TrimSpace(name))
	}
	return value
}

// LoadDotEnv loads variables from the given files (".env" when none) without
// overriding variables already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
