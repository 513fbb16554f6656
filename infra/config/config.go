package config

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Dir is the directory of the named configs.
var Dir = "infra/config"

//go:embed *.json
var defaults embed.FS

// Load loads the json config from the given file into v.
func Load(file string, v interface{}) error {
	b, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("could not load config from %s: %w", file, err)
	}

	err = json.Unmarshal(b, v)
	if err != nil {
		return fmt.Errorf("could not unmarshal the config from %s: %w", file, err)
	}

	log.Info().Str("file", file).Msg("loaded config")
	return nil
}

// MustLoad loads the config for the given key.
// Configs missing from Dir are read from the ones built into the binary.
func MustLoad(key string, v interface{}) {
	name := fmt.Sprintf("%s.json", key)
	file := filepath.Join(Dir, name)
	if _, err := os.Stat(file); err == nil || !errors.Is(err, fs.ErrNotExist) {
		if err := Load(file, v); err != nil {
			panic(err.Error())
		}
		return
	}

	b, err := defaults.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("could not load config for %s: %s", key, err.Error()))
	}
	if err := json.Unmarshal(b, v); err != nil {
		panic(fmt.Sprintf("could not unmarshal the config for %s: %s", key, err.Error()))
	}
	log.Debug().Str("key", key).Msg("loaded default config")
}
