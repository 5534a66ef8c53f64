package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"voxelgate.ai/internal/sim/catalogs"
	"voxelgate.ai/internal/sim/portal"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	MaxSize       int    `yaml:"max_size"`
	PowerCost     int    `yaml:"power_cost"`
	PowerCapacity int    `yaml:"power_capacity"`
	PowerSource   string `yaml:"power_source"`

	PlayerTeleportationDelay    int `yaml:"player_teleportation_delay"`
	PlayerTeleportationCooldown int `yaml:"player_teleportation_cooldown"`
	EntityTeleportationCooldown int `yaml:"entity_teleportation_cooldown"`

	Blocks     Blocks   `yaml:"blocks"`
	Dimensions []string `yaml:"dimensions"`
	Seed       int64    `yaml:"seed"`

	Storage Storage `yaml:"storage"`
}

type Blocks struct {
	Frame  string `yaml:"frame"`
	Gauge  string `yaml:"gauge"`
	Marker string `yaml:"marker"`
}

type Storage struct {
	Backend        string `yaml:"backend"` // "file" or "badger"
	SaveEveryTicks int    `yaml:"save_every_ticks"`
}

const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

func Defaults() Tuning {
	b := portal.DefaultBlocks()
	return Tuning{
		TickRateHz:                  20,
		MaxSize:                     7,
		PowerCost:                   1,
		PowerCapacity:               64,
		PowerSource:                 "c:ender_pearls",
		PlayerTeleportationDelay:    10,
		PlayerTeleportationCooldown: 60,
		EntityTeleportationCooldown: 300,
		Blocks: Blocks{
			Frame:  string(b.Frame),
			Gauge:  string(b.Gauge),
			Marker: string(b.Marker),
		},
		Dimensions: []string{"overworld", "nether", "end"},
		Storage: Storage{
			Backend:        BackendFile,
			SaveEveryTicks: 100,
		},
	}
}

// Load reads path over Defaults and validates the result.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	// A list in the file replaces the default list.
	t.Dimensions = nil
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.Dimensions == nil {
		t.Dimensions = Defaults().Dimensions
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Validate runs every field check and joins the failures.
func (t Tuning) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(t.TickRateHz >= 1 && t.TickRateHz <= 100, "tick_rate_hz must be in 1..100, got %d", t.TickRateHz)
	check(t.MaxSize >= 3 && t.MaxSize <= 128, "max_size must be in 3..128, got %d", t.MaxSize)
	check(t.PowerCost >= 0, "power_cost must be >= 0, got %d", t.PowerCost)
	check(t.PowerCapacity > 0, "power_capacity must be > 0, got %d", t.PowerCapacity)
	check(catalogs.ValidResourceID(t.PowerSource), "power_source must be a namespace:path id, got %q", t.PowerSource)
	check(t.PlayerTeleportationDelay >= 0 && t.PlayerTeleportationDelay <= 40,
		"player_teleportation_delay must be in 0..40, got %d", t.PlayerTeleportationDelay)
	check(t.PlayerTeleportationCooldown >= 60,
		"player_teleportation_cooldown must be >= 60, got %d", t.PlayerTeleportationCooldown)
	check(t.EntityTeleportationCooldown >= 0,
		"entity_teleportation_cooldown must be >= 0, got %d", t.EntityTeleportationCooldown)

	ids := map[string]string{}
	for _, b := range []struct{ name, id string }{
		{"frame", t.Blocks.Frame},
		{"gauge", t.Blocks.Gauge},
		{"marker", t.Blocks.Marker},
	} {
		if !catalogs.ValidResourceID(b.id) {
			errs = append(errs, fmt.Errorf("blocks.%s must be a namespace:path id, got %q", b.name, b.id))
			continue
		}
		if prev, dup := ids[b.id]; dup {
			errs = append(errs, fmt.Errorf("blocks.%s duplicates blocks.%s (%s)", b.name, prev, b.id))
			continue
		}
		ids[b.id] = b.name
	}

	check(len(t.Dimensions) > 0, "dimensions must not be empty")
	seen := map[string]bool{}
	for _, d := range t.Dimensions {
		if d == "" {
			errs = append(errs, errors.New("dimensions: empty name"))
			continue
		}
		if seen[d] {
			errs = append(errs, fmt.Errorf("dimensions: duplicate %q", d))
		}
		seen[d] = true
	}

	check(t.Storage.Backend == BackendFile || t.Storage.Backend == BackendBadger,
		"storage.backend must be %q or %q, got %q", BackendFile, BackendBadger, t.Storage.Backend)
	check(t.Storage.SaveEveryTicks > 0, "storage.save_every_ticks must be > 0, got %d", t.Storage.SaveEveryTicks)

	return errors.Join(errs...)
}

// PortalConfig is the part of the settings the registry works with.
func (t Tuning) PortalConfig() portal.Config {
	return portal.Config{
		MaxSize:       t.MaxSize,
		PowerCost:     t.PowerCost,
		PowerCapacity: t.PowerCapacity,
		Blocks: portal.Blocks{
			Frame:  portal.BlockID(t.Blocks.Frame),
			Gauge:  portal.BlockID(t.Blocks.Gauge),
			Marker: portal.BlockID(t.Blocks.Marker),
		},
	}
}
