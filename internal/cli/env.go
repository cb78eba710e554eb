package cli

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
)

// parseEnv builds the program environment overrides. Dotenv files are read
// in order, later files winning; --env pairs win over all files.
func parseEnv(pairs, files []string) (map[string]string, error) {
	env := map[string]string{}

	if len(files) > 0 {
		fromFiles, err := godotenv.Read(files...)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
		for k, v := range fromFiles {
			env[k] = v
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q: want KEY=VALUE", pair)
		}
		env[key] = value
	}

	return env, nil
}
