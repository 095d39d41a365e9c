/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"epitax/internal/domain"
	applog "epitax/internal/log"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type FontConfig struct {
	FamilyName string `yaml:"family_name"`
	StyleName  string `yaml:"style_name"`
	UnitsPerEm int    `yaml:"units_per_em"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver"` // "sqlite" | "postgres" | "memory"
	Path          string `yaml:"path"`   // sqlite file; empty means next to the config file
	DSN           string `yaml:"dsn"`    // postgres; the password lives in the OS keychain
	KeepRevisions int    `yaml:"keep_revisions"`
	AutosaveMs    int    `yaml:"autosave_ms"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Grid          domain.Grid   `yaml:"grid"`
	Font          FontConfig    `yaml:"font"`
	Storage       StorageConfig `yaml:"storage"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Grid:          domain.DefaultGrid(),
		Font:          FontConfig{FamilyName: domain.DefaultFamilyName, StyleName: domain.DefaultStyleName, UnitsPerEm: domain.DefaultUnitsPerEm},
		Storage:       StorageConfig{Driver: DriverSQLite, KeepRevisions: 20, AutosaveMs: 2000},
		Server:        ServerConfig{Addr: "127.0.0.1:8080"},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath    = "EPITAX_CONFIG"
	EnvStorageDriver = "EPITAX_STORAGE_DRIVER"
	EnvStoragePath   = "EPITAX_STORAGE_PATH"
	EnvPGDSN         = "EPITAX_PG_DSN"
	EnvServerAddr    = "EPITAX_SERVER_ADDR"
	EnvAutosaveMs    = "EPITAX_AUTOSAVE_MS"
	EnvFamilyName    = "EPITAX_FAMILY_NAME"
	// Logging envs are shared with the log package.
	EnvLogLevel  = applog.EnvLevel
	EnvLogFormat = applog.EnvFormat
	EnvLogSource = applog.EnvSource
	EnvLogFile   = applog.EnvFile
)

// Service/keys for OS keyring.
const (
	keyringService    = "Epitax"
	keyringPGPassword = "postgres_password"
)

const (
	appDirName        = "epitax"
	appDirNameTitle   = "Epitax" // windows and macOS
	defaultConfigName = "config.yaml"
	defaultSQLiteName = "epitax.sqlite"
)

// secretStore abstracts the keyring so tests can use keyring.MockInit.
var secretStore SecretStore = osKeyring{}

type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements SecretStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// ConfigPath returns the per-user config file path. EPITAX_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, appDirNameTitle)
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", appDirNameTitle)
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, appDirName)
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", appDirName)
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, defaultConfigName), nil
}

// Load reads the user config file (if present), applies defaults, and merges
// environment overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), err
	}
	return LoadFrom(path)
}

// LoadFrom is Load for an explicit file. A missing file is not an error; a
// file that does not parse is.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(filepath.Dir(path), defaultSQLiteName)
	}
	return cfg, nil
}

// Save writes the user config YAML to path.
func Save(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate rejects configurations the editor cannot work with.
func (c AppConfig) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	if c.Font.UnitsPerEm < 16 || c.Font.UnitsPerEm > 16384 {
		return fmt.Errorf("font: units_per_em %d out of range", c.Font.UnitsPerEm)
	}
	if strings.TrimSpace(c.Font.FamilyName) == "" {
		return errors.New("font: family_name is required")
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("storage: postgres driver needs a dsn")
		}
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}
	if c.Storage.AutosaveMs < 0 {
		return fmt.Errorf("storage: autosave_ms must not be negative")
	}
	return nil
}

// AutosaveInterval is the autosave cadence as a duration.
func (s StorageConfig) AutosaveInterval() time.Duration {
	return time.Duration(s.AutosaveMs) * time.Millisecond
}

// PostgresDSN returns the DSN with the keychain password filled in when the
// configured DSN carries none.
func (s StorageConfig) PostgresDSN() (string, error) {
	u, err := url.Parse(s.DSN)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	if u.User == nil {
		return s.DSN, nil
	}
	if _, has := u.User.Password(); has {
		return s.DSN, nil
	}
	pw, err := secretStore.Get(keyringService, keyringPGPassword)
	if errors.Is(err, keyring.ErrNotFound) {
		return s.DSN, nil
	}
	if err != nil {
		return "", fmt.Errorf("read keychain: %w", err)
	}
	u.User = url.UserPassword(u.User.Username(), pw)
	return u.String(), nil
}

// SetPostgresPassword stores the password in the OS keychain; an empty value removes it.
func SetPostgresPassword(pw string) error {
	if pw == "" {
		err := secretStore.Delete(keyringService, keyringPGPassword)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return secretStore.Set(keyringService, keyringPGPassword, pw)
}

// LogOptions maps the logging section onto the log package.
func (c AppConfig) LogOptions() applog.Options {
	return applog.Options{Level: c.Logging.Level, Format: c.Logging.Format, AddSource: c.Logging.Source, File: c.Logging.File}
}

// NewDocument starts a document for this grid and font naming.
func (c AppConfig) NewDocument() *domain.Document {
	doc := domain.NewDocument(c.Grid)
	doc.FontSettings.FamilyName = c.Font.FamilyName
	doc.FontSettings.StyleName = c.Font.StyleName
	doc.FontSettings.UnitsPerEm = c.Font.UnitsPerEm
	return doc
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Grid.Rows != 0 {
		dst.Grid.Rows = src.Grid.Rows
	}
	if src.Grid.Cols != 0 {
		dst.Grid.Cols = src.Grid.Cols
	}
	if src.Grid.CellSize != 0 {
		dst.Grid.CellSize = src.Grid.CellSize
	}
	if src.Grid.DescenderRows != 0 {
		dst.Grid.DescenderRows = src.Grid.DescenderRows
	}
	if src.Grid.XHeightRows != 0 {
		dst.Grid.XHeightRows = src.Grid.XHeightRows
	}
	if s := strings.TrimSpace(src.Font.FamilyName); s != "" {
		dst.Font.FamilyName = s
	}
	if s := strings.TrimSpace(src.Font.StyleName); s != "" {
		dst.Font.StyleName = s
	}
	if src.Font.UnitsPerEm != 0 {
		dst.Font.UnitsPerEm = src.Font.UnitsPerEm
	}
	if s := strings.ToLower(strings.TrimSpace(src.Storage.Driver)); s != "" {
		dst.Storage.Driver = s
	}
	if s := strings.TrimSpace(src.Storage.Path); s != "" {
		dst.Storage.Path = s
	}
	if s := strings.TrimSpace(src.Storage.DSN); s != "" {
		dst.Storage.DSN = s
	}
	if src.Storage.KeepRevisions != 0 {
		dst.Storage.KeepRevisions = src.Storage.KeepRevisions
	}
	if src.Storage.AutosaveMs != 0 {
		dst.Storage.AutosaveMs = src.Storage.AutosaveMs
	}
	if s := strings.TrimSpace(src.Server.Addr); s != "" {
		dst.Server.Addr = s
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvStorageDriver)); v != "" {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoragePath)); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPGDSN)); v != "" {
		cfg.Storage.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAutosaveMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Storage.AutosaveMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvFamilyName)); v != "" {
		cfg.Font.FamilyName = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envByKey = map[string]string{
	"storage.driver":      EnvStorageDriver,
	"storage.path":        EnvStoragePath,
	"storage.dsn":         EnvPGDSN,
	"storage.autosave_ms": EnvAutosaveMs,
	"server.addr":         EnvServerAddr,
	"font.family_name":    EnvFamilyName,
	"logging.level":       EnvLogLevel,
	"logging.format":      EnvLogFormat,
	"logging.source":      EnvLogSource,
	"logging.file":        EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envByKey[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}
