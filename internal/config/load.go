package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sentineld/sentineld/internal/apperrors"
)

// Load reads a daemon-fleet YAML document from path, expands environment
// variables, and returns the normalized per-daemon configuration list.
//
// A .env file alongside the working directory is loaded first (if present)
// so that secrets referenced from the YAML via ${VAR} are available.
func Load(path string) (*Fleet, []DaemonConfig, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "note: no .env file loaded: %v\n", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil, apperrors.ConfigMissing(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil, apperrors.ConfigEmpty(path)
	}

	expanded := os.ExpandEnv(string(raw))

	var fleet Fleet
	if err := yaml.Unmarshal([]byte(expanded), &fleet); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyFleetDefaults(&fleet)

	daemons, warnings := normalizeDaemons(&fleet)
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	return &fleet, daemons, nil
}
