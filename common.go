package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	_ "github.com/mattn/go-sqlite3"
)

const defaultConfigName = "ewssync.toml"

type Config struct {
	EWS    EWSConfig    `toml:"ews"`
	CalDAV CalDAVConfig `toml:"caldav"`
	Misc   MiscConfig   `toml:"misc"`
}

// EWSConfig describes the Exchange side of the mirror.
type EWSConfig struct {
	Server      string `toml:"server"`
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	Account     string `toml:"account"`
	Impersonate bool   `toml:"impersonate"`

	// Auth is one of "basic", "ntlm" or "oauth2".
	Auth         string `toml:"auth"`
	TenantID     string `toml:"tenant_id"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`

	Version    string `toml:"version"`
	PageSize   int    `toml:"page_size"`
	FetchBatch int    `toml:"fetch_batch"`
}

type CalDAVConfig struct {
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Calendar string `toml:"calendar"`
	// Auth is one of "basic" or "digest".
	Auth string `toml:"auth"`
}

type MiscConfig struct {
	LogLevel  string `toml:"loglevel"`
	StateFile string `toml:"statefile"`
	Database  string `toml:"database"`
}

// Endpoint returns the EWS SOAP endpoint URL.
func (c EWSConfig) Endpoint() string {
	if c.URL != "" {
		return c.URL
	}
	return "https://" + strings.TrimSuffix(c.Server, "/") + "/EWS/Exchange.asmx"
}

func (c *Config) applyDefaults() {
	if c.EWS.Auth == "" {
		c.EWS.Auth = "basic"
	}
	if c.EWS.Version == "" {
		c.EWS.Version = "Exchange2013_SP1"
	}
	if c.EWS.PageSize <= 0 || c.EWS.PageSize > maxSyncPageSize {
		c.EWS.PageSize = maxSyncPageSize
	}
	if c.EWS.FetchBatch <= 0 {
		c.EWS.FetchBatch = defaultFetchBatch
	}
	if c.CalDAV.Auth == "" {
		c.CalDAV.Auth = "basic"
	}
	if c.Misc.LogLevel == "" {
		c.Misc.LogLevel = "INFO"
	}
}

func (c *Config) validate() error {
	var problems []string
	if c.EWS.Server == "" && c.EWS.URL == "" {
		problems = append(problems, "ews.server or ews.url is required")
	}
	if c.EWS.Account == "" {
		problems = append(problems, "ews.account is required")
	}
	switch strings.ToLower(c.EWS.Auth) {
	case "basic", "ntlm":
		if c.EWS.Username == "" {
			problems = append(problems, "ews.username is required for "+c.EWS.Auth+" auth")
		}
	case "oauth2":
		if c.EWS.TenantID == "" || c.EWS.ClientID == "" || c.EWS.ClientSecret == "" {
			problems = append(problems, "ews.tenant_id, ews.client_id and ews.client_secret are required for oauth2 auth")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported ews.auth %q", c.EWS.Auth))
	}
	if c.CalDAV.URL == "" {
		problems = append(problems, "caldav.url is required")
	}
	if c.CalDAV.Calendar == "" {
		problems = append(problems, "caldav.calendar is required")
	}
	switch strings.ToLower(c.CalDAV.Auth) {
	case "basic", "digest":
	default:
		problems = append(problems, fmt.Sprintf("unsupported caldav.auth %q", c.CalDAV.Auth))
	}
	if c.Misc.StateFile == "" && c.Misc.Database == "" {
		problems = append(problems, "misc.statefile or misc.database is required to keep the sync state")
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// findConfig resolves the config file: an explicit path is used as-is,
// otherwise the current dir is tried first, then `$HOME/.config/ewssync/`.
func findConfig(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultConfigName
	}
	candidate := filepath.Join(home, ".config", "ewssync", defaultConfigName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return defaultConfigName
}

func readConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", filename, err)
	}
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	// Relative state paths are resolved next to the config file.
	dir := filepath.Dir(filename)
	config.Misc.StateFile = resolveRelative(dir, config.Misc.StateFile)
	config.Misc.Database = resolveRelative(dir, config.Misc.Database)

	return &config, nil
}

func resolveRelative(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func openDB(filename string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}
	if err := dbInit(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
