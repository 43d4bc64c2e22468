// package config loads the engine configuration from a TOML file next to
// the executable, creating it with defaults on first run.
package config

import (
	"bytes"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/Carmen-Shannon/onyx-go/common"
)

// Config is the engine configuration persisted as TOML.
type Config struct {
	// WindowWidth and WindowHeight are the initial window dimensions.
	WindowWidth  int
	WindowHeight int

	// WindowTitle is the window title.
	WindowTitle string

	// VSync selects the FIFO present mode when true.
	VSync bool

	// RawAssetRoot is the directory holding source assets (glTF files).
	RawAssetRoot string

	// CompiledAssetRoot is the directory compiled blobs are written to.
	CompiledAssetRoot string

	// BinarizerWorkers is the worker pool size for asset compilation.
	BinarizerWorkers int

	// DebugFlags is the debug pass mix mask; zero disables the debug pass.
	DebugFlags uint32

	// EnableReadback adds COPY_SRC to storage buffers for capture tooling.
	EnableReadback bool

	// EnableProfiler turns on periodic frame statistics logging.
	EnableProfiler bool
}

// ConfigFile is the configuration file name.
const ConfigFile = "engine.toml"

// Default returns the configuration used when no file exists.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		WindowWidth:       1280,
		WindowHeight:      720,
		WindowTitle:       "Onyx",
		VSync:             true,
		RawAssetRoot:      "assets",
		CompiledAssetRoot: "assets_compiled",
		BinarizerWorkers:  4,
	}
}

// Load reads the configuration from dir, writing the defaults first when
// the file is missing. Malformed files fall back to defaults with a log.
//
// Parameters:
//   - dir: the directory holding the config file
//
// Returns:
//   - Config: the loaded configuration
func Load(dir string) Config {
	conf := Default()
	path := filepath.Join(dir, ConfigFile)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Println("[Config] initializing default configuration")
		Write(dir, &conf)
		return conf
	}
	if err != nil {
		log.Printf("[Config] read failed, using defaults: %v", err)
		return conf
	}
	if err := toml.Unmarshal(data, &conf); err != nil {
		log.Printf("[Config] parse failed, using defaults: %v", err)
		return Default()
	}
	// fields left empty in a hand-edited file fall back to the defaults
	defaults := Default()
	conf.WindowWidth = common.Coalesce(conf.WindowWidth, defaults.WindowWidth)
	conf.WindowHeight = common.Coalesce(conf.WindowHeight, defaults.WindowHeight)
	conf.WindowTitle = common.Coalesce(conf.WindowTitle, defaults.WindowTitle)
	conf.RawAssetRoot = common.Coalesce(conf.RawAssetRoot, defaults.RawAssetRoot)
	conf.CompiledAssetRoot = common.Coalesce(conf.CompiledAssetRoot, defaults.CompiledAssetRoot)
	conf.BinarizerWorkers = common.Coalesce(conf.BinarizerWorkers, defaults.BinarizerWorkers)
	return conf
}

// Write persists the configuration to dir.
//
// Parameters:
//   - dir: the directory to write into
//   - conf: the configuration to persist
func Write(dir string, conf *Config) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Printf("[Config] couldn't create config directory: %v", err)
		return
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(conf); err != nil {
		log.Printf("[Config] encode failed: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), buf.Bytes(), 0o600); err != nil {
		log.Printf("[Config] write failed: %v", err)
	}
}
