// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/partition/domain"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "PARTITION_CONFIG"

// Environment is the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the daemon configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Paths   PathsConfig   `yaml:"paths"`
	Heap    HeapConfig    `yaml:"heap"`
	Harts   int           `yaml:"harts"`
	Journal JournalConfig `yaml:"journal"`
	Update  UpdateConfig  `yaml:"update"`

	// Boot lists the domains registered at startup, in order. Later
	// entries may depend on earlier ones (a shadow names its backend).
	Boot []BootDomain `yaml:"boot"`

	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides are the fields an environment section may replace. Zero
// values leave the base value alone.
type Overrides struct {
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
	Heap    *HeapConfig    `yaml:"heap,omitempty"`
	Harts   int            `yaml:"harts,omitempty"`
	Journal *JournalConfig `yaml:"journal,omitempty"`
}

// PathsConfig locates the daemon's files.
type PathsConfig struct {
	// Root is the base directory. ${PARTITION_ROOT} in the other
	// paths expands to it.
	Root string `yaml:"root"`

	// Socket is the management socket.
	Socket string `yaml:"socket"`

	// Journal is the crash journal database.
	Journal string `yaml:"journal"`

	// Manifests is where relative manifest paths are resolved.
	Manifests string `yaml:"manifests"`

	// Watchdog records a domain update in progress.
	Watchdog string `yaml:"watchdog"`
}

// HeapConfig sizes the shared heap.
type HeapConfig struct {
	// Capacity is the maximum number of live bytes. Zero means
	// unlimited.
	Capacity int64 `yaml:"capacity"`
}

// JournalConfig controls the crash journal.
type JournalConfig struct {
	// Disabled turns the journal off; crashes are then only logged.
	Disabled bool `yaml:"disabled"`

	// Retention is how long crash records are kept, as a Go duration.
	// Empty keeps them forever.
	Retention string `yaml:"retention"`
}

// UpdateConfig controls hot update.
type UpdateConfig struct {
	// WatchdogMaxAge is how old an interrupted-update record may be
	// and still be reported at boot, as a Go duration.
	WatchdogMaxAge string `yaml:"watchdog_max_age"`
}

// BootDomain is one domain registered at startup.
type BootDomain struct {
	// Source is a manifest path or a built-in image name.
	Source string `yaml:"source"`

	// Kind is the kind name, e.g. "block_device".
	Kind domain.Kind `yaml:"kind"`

	// Name is the registry name. Empty attaches under the image name.
	Name string `yaml:"name"`
}

// Default returns the base configuration a file is merged into.
func Default() *Config {
	root := "${HOME}/.local/state/partition"
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:      root,
			Socket:    "${PARTITION_ROOT}/partition.sock",
			Journal:   "${PARTITION_ROOT}/crashes.db",
			Manifests: "${PARTITION_ROOT}/manifests",
			Watchdog:  "${PARTITION_ROOT}/update.watchdog",
		},
		Harts: 4,
		Journal: JournalConfig{
			Retention: "720h",
		},
		Update: UpdateConfig{
			WatchdogMaxAge: "10m",
		},
	}
}

// Load reads the file named by PARTITION_CONFIG. There is no search
// path: without the variable, Load fails.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; set it to the path of partition.yaml, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile reads the config at path over Default, applies the section
// for the selected environment, and expands ${VAR} references in
// paths.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse is LoadFile for config text already in memory.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if paths := overrides.Paths; paths != nil {
		override(&c.Paths.Root, paths.Root)
		override(&c.Paths.Socket, paths.Socket)
		override(&c.Paths.Journal, paths.Journal)
		override(&c.Paths.Manifests, paths.Manifests)
		override(&c.Paths.Watchdog, paths.Watchdog)
	}
	if overrides.Heap != nil && overrides.Heap.Capacity != 0 {
		c.Heap.Capacity = overrides.Heap.Capacity
	}
	if overrides.Harts != 0 {
		c.Harts = overrides.Harts
	}
	if journal := overrides.Journal; journal != nil {
		c.Journal.Disabled = journal.Disabled
		override(&c.Journal.Retention, journal.Retention)
	}
}

func override(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["PARTITION_ROOT"] = c.Paths.Root

	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
	c.Paths.Journal = expandVars(c.Paths.Journal, vars)
	c.Paths.Manifests = expandVars(c.Paths.Manifests, vars)
	c.Paths.Watchdog = expandVars(c.Paths.Watchdog, vars)
	for i := range c.Boot {
		c.Boot[i].Source = expandVars(c.Boot[i].Source, vars)
	}
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, fallback := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// JournalRetention returns the parsed retention, zero meaning keep
// forever.
func (c *Config) JournalRetention() (time.Duration, error) {
	return parseDuration("journal.retention", c.Journal.Retention)
}

// WatchdogMaxAge returns the parsed update watchdog age limit.
func (c *Config) WatchdogMaxAge() (time.Duration, error) {
	return parseDuration("update.watchdog_max_age", c.Update.WatchdogMaxAge)
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", field, value)
	}
	return duration, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if c.Paths.Root == "" {
		errs = append(errs, errors.New("paths.root is required"))
	}
	if c.Paths.Socket == "" {
		errs = append(errs, errors.New("paths.socket is required"))
	}
	if c.Paths.Journal == "" && !c.Journal.Disabled {
		errs = append(errs, errors.New("paths.journal is required unless journal.disabled is set"))
	}
	if c.Harts < 1 {
		errs = append(errs, fmt.Errorf("harts must be at least 1, got %d", c.Harts))
	}
	if c.Heap.Capacity < 0 {
		errs = append(errs, fmt.Errorf("heap.capacity must not be negative, got %d", c.Heap.Capacity))
	}
	if _, err := c.JournalRetention(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.WatchdogMaxAge(); err != nil {
		errs = append(errs, err)
	}
	names := make(map[string]int)
	for i, boot := range c.Boot {
		if boot.Source == "" {
			errs = append(errs, fmt.Errorf("boot[%d]: source is required", i))
		}
		if !boot.Kind.Valid() {
			errs = append(errs, fmt.Errorf("boot[%d]: kind is required", i))
		}
		if boot.Name == "" {
			continue
		}
		if previous, seen := names[boot.Name]; seen {
			errs = append(errs, fmt.Errorf("boot[%d]: name %q already used by boot[%d]", i, boot.Name, previous))
		}
		names[boot.Name] = i
	}
	return errors.Join(errs...)
}

// EnsurePaths creates the root and the directories holding the
// configured files.
func (c *Config) EnsurePaths() error {
	directories := []string{c.Paths.Root, c.Paths.Manifests}
	for _, file := range []string{c.Paths.Socket, c.Paths.Journal, c.Paths.Watchdog} {
		if file != "" {
			directories = append(directories, filepath.Dir(file))
		}
	}
	for _, directory := range directories {
		if directory == "" {
			continue
		}
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", directory, err)
		}
	}
	return nil
}
