// Package config loads the TOML configuration shared by sandbox instances
// and the diagnostic tools.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/appstract/appstract/internal/ledger"
	"github.com/appstract/appstract/internal/vfs"
)

// DefaultFileName is looked up next to the executable when no configuration
// file is given.
const DefaultFileName = "appstract.toml"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root of the configuration document.
type Config struct {
	Environment Environment `toml:"environment"`
	Ledger      Ledger      `toml:"ledger"`
	Log         Log         `toml:"log"`
}

// Environment configures the virtual environment of a sandbox.
type Environment struct {
	Root string `toml:"root"`
	// RedirectUnspecified redirects requests that do not state a creation
	// disposition instead of letting them fall back to the host path.
	RedirectUnspecified bool `toml:"redirect_unspecified"`
	// HostFolders overrides host folder locations, keyed by folder name.
	HostFolders map[string]string `toml:"host_folders"`
}

// Ledger configures the insurance ledger and the shared store.
type Ledger struct {
	Path        string `toml:"path"`
	MachineID   string `toml:"machine_id"`
	LockTimeout string `toml:"lock_timeout"`
	Store       string `toml:"store"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	data := os.Getenv("ProgramData")
	if data == "" {
		data = os.TempDir()
	}
	base := filepath.Join(data, "AppStract")
	if c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(base, "ledger.db")
	}
	if c.Ledger.Store == "" {
		c.Ledger.Store = filepath.Join(base, "assembly")
	}
	if c.Ledger.LockTimeout == "" {
		c.Ledger.LockTimeout = ledger.DefaultLockTimeout.String()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Parse decodes a TOML document. Keys left unset take their defaults.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse configuration")
	}
	c.setDefaults()
	return c, nil
}

// Load reads the configuration at path. An empty path selects
// DefaultFileName next to the executable, and the defaults when that file
// does not exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		exe, err := os.Executable()
		if err != nil {
			return Default(), nil
		}
		path = filepath.Join(filepath.Dir(exe), DefaultFileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return nil, errors.Wrapf(err, "failed to read configuration %s", path)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return c, nil
}

// Validate reports keys that are missing or malformed.
func (c *Config) Validate() error {
	if c.Ledger.Path == "" {
		return errors.Wrap(ErrInvalidConfig, "ledger.path is required")
	}
	if c.Ledger.Store == "" {
		return errors.Wrap(ErrInvalidConfig, "ledger.store is required")
	}
	if _, err := c.LockTimeout(); err != nil {
		return err
	}
	if _, err := c.HostFolders(func(string) string { return "" }); err != nil {
		return err
	}
	return nil
}

// LockTimeout parses ledger.lock_timeout. An empty value selects
// ledger.DefaultLockTimeout.
func (c *Config) LockTimeout() (time.Duration, error) {
	if c.Ledger.LockTimeout == "" {
		return ledger.DefaultLockTimeout, nil
	}
	d, err := time.ParseDuration(c.Ledger.LockTimeout)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidConfig, "ledger.lock_timeout: %v", err)
	}
	if d <= 0 {
		return 0, errors.Wrapf(ErrInvalidConfig, "ledger.lock_timeout must be positive, got %s", d)
	}
	return d, nil
}

// MachineID returns ledger.machine_id, or the host name when it is unset.
func (c *Config) MachineID() (string, error) {
	if c.Ledger.MachineID != "" {
		return c.Ledger.MachineID, nil
	}
	name, err := os.Hostname()
	if err != nil {
		return "", errors.Wrap(err, "failed to determine machine id")
	}
	return name, nil
}

// HostFolders resolves the host folder locations from getenv and applies the
// overrides of environment.host_folders.
func (c *Config) HostFolders(getenv func(string) string) (vfs.HostFolders, error) {
	hf := vfs.DefaultHostFolders(getenv)
	for name, p := range c.Environment.HostFolders {
		f, err := vfs.ParseFolder(name)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "environment.host_folders: %v", err)
		}
		hf[f] = p
	}
	return hf, nil
}

// FallbackPolicy returns the policy selected by
// environment.redirect_unspecified.
func (c *Config) FallbackPolicy() vfs.FallbackPolicy {
	if c.Environment.RedirectUnspecified {
		return vfs.StrictFallbackPolicy
	}
	return vfs.DefaultFallbackPolicy
}
