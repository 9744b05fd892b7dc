// Package config implements the resolved/user configuration split the
// engine and HTTP server are started from, mirroring the teacher's
// server.Config/server.UserConfig pattern (see server/conf.go): Config is
// the fully-resolved, code-facing struct; UserConfig is the serializable,
// operator-facing struct loaded from a TOML file on disk.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
)

// Config is the fully-resolved configuration the engine, store and HTTP
// server are constructed from.
type Config struct {
	Log *slog.Logger

	// Address is the address the HTTP server listens on.
	Address string
	// AllowedOrigins is the CORS allow-list; empty means same-origin only.
	AllowedOrigins []string

	// TickInterval drives the timer loop when the simulation is running. It
	// does not bound manual /api/simulation/tick calls.
	TickInterval time.Duration

	// StationX, StationY are the coordinates idle bots drift toward and the
	// position reset returns every bot to (spec §6.3, default (4,3)).
	StationX, StationY int

	// ThrottleLimit is K, the maximum admissions per restaurant per window
	// (spec C4, default 3).
	ThrottleLimit int
	// ThrottleWindowTicks is W measured in ticks, used by the in-tick
	// planner (C5).
	ThrottleWindowTicks int64
	// ThrottleWindowWallClock is W measured in wall-clock time, used by
	// eager order creation (C8).
	ThrottleWindowWallClock time.Duration

	// BotCount is the fixed fleet size (default 5).
	BotCount int
	// BotCapacity is max_capacity for every bot (default 3).
	BotCapacity int

	// DBPath, if non-empty, enables durable LevelDB persistence for the
	// store.
	DBPath string

	// BootstrapDir is the directory bootstrap CSV/jsonc files are read from.
	BootstrapDir string

	// MaxRequestBody caps incoming HTTP request bodies (spec §1's security
	// middleware, default 1 MiB).
	MaxRequestBody int64
}

// UserConfig is the serializable, operator-facing configuration loaded from
// a TOML file, converted to a Config via UserConfig.Resolve.
type UserConfig struct {
	Network struct {
		Address        string
		AllowedOrigins []string
	}
	Simulation struct {
		TickIntervalMS          int
		StationX, StationY      int
		ThrottleLimit           int
		ThrottleWindowTicks     int64
		ThrottleWindowSeconds   int
	}
	Fleet struct {
		BotCount    int
		BotCapacity int
	}
	Store struct {
		DBPath string
	}
	Bootstrap struct {
		Dir string
	}
	Security struct {
		MaxRequestBodyBytes int64
	}
}

// DefaultConfig returns a UserConfig with the spec's default values filled
// in (spec §6.3).
func DefaultConfig() UserConfig {
	var c UserConfig
	c.Network.Address = ":8080"
	c.Network.AllowedOrigins = []string{"http://localhost:5173"}
	c.Simulation.TickIntervalMS = 1000
	c.Simulation.StationX = 4
	c.Simulation.StationY = 3
	c.Simulation.ThrottleLimit = 3
	c.Simulation.ThrottleWindowTicks = 30
	c.Simulation.ThrottleWindowSeconds = 30
	c.Fleet.BotCount = 5
	c.Fleet.BotCapacity = 3
	c.Store.DBPath = ""
	c.Bootstrap.Dir = "data"
	c.Security.MaxRequestBodyBytes = 1 << 20
	return c
}

// Resolve converts a UserConfig into a Config ready to build the engine and
// server from.
func (uc UserConfig) Resolve(log *slog.Logger) (Config, error) {
	if log == nil {
		log = slog.Default()
	}
	if uc.Simulation.ThrottleLimit <= 0 {
		return Config{}, fmt.Errorf("config: simulation.throttlelimit must be positive")
	}
	return Config{
		Log:                     log,
		Address:                 uc.Network.Address,
		AllowedOrigins:          uc.Network.AllowedOrigins,
		TickInterval:            time.Duration(uc.Simulation.TickIntervalMS) * time.Millisecond,
		StationX:                uc.Simulation.StationX,
		StationY:                uc.Simulation.StationY,
		ThrottleLimit:           uc.Simulation.ThrottleLimit,
		ThrottleWindowTicks:     uc.Simulation.ThrottleWindowTicks,
		ThrottleWindowWallClock: time.Duration(uc.Simulation.ThrottleWindowSeconds) * time.Second,
		BotCount:                uc.Fleet.BotCount,
		BotCapacity:             uc.Fleet.BotCapacity,
		DBPath:                  uc.Store.DBPath,
		BootstrapDir:            uc.Bootstrap.Dir,
		MaxRequestBody:          uc.Security.MaxRequestBodyBytes,
	}, nil
}

// Load reads the TOML file at path, creating it with default values if it
// does not exist yet (mirrors server.LoadWhitelist's create-on-first-run
// behavior).
func Load(path string) (UserConfig, error) {
	if strings.TrimSpace(path) == "" {
		return UserConfig{}, errors.New("config: path must not be empty")
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			uc := DefaultConfig()
			return uc, uc.Save(path)
		}
		return UserConfig{}, fmt.Errorf("config: read: %w", err)
	}
	uc := DefaultConfig()
	if len(contents) != 0 {
		if err := toml.Unmarshal(contents, &uc); err != nil {
			return UserConfig{}, fmt.Errorf("config: decode: %w", err)
		}
	}
	return uc, nil
}

// Save writes uc to path as TOML, creating parent directories as needed.
func (uc UserConfig) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	b, err := toml.Marshal(uc)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}
