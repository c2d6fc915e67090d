package file

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

// DefaultEnvFile is read from the working directory on start-up.
const DefaultEnvFile = ".env"

// LoadEnv loads KEY=value pairs from each file into the process environment.
// Variables already set are left alone and missing files are skipped.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{DefaultEnvFile}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%w: load %s: %w", domain.ErrConfiguration, p, err)
		}
	}
	return nil
}
