package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/go-ntlmssp"
	dac "github.com/Snawoot/go-http-digest-auth-client"
	"github.com/emersion/go-webdav"
	"golang.org/x/oauth2/clientcredentials"
)

const ewsOAuthScope = "https://outlook.office365.com/.default"

// SessionFactory builds the Exchange and CalDAV sessions and the state
// backends from one configuration.
type SessionFactory struct {
	config *Config
	ctx    context.Context
}

func NewSessionFactory(ctx context.Context, config *Config) *SessionFactory {
	return &SessionFactory{
		config: config,
		ctx:    ctx,
	}
}

// ewsHTTPClient returns an HTTP client authenticating with the configured
// EWS auth scheme.
func (f *SessionFactory) ewsHTTPClient() (*http.Client, error) {
	cfg := f.config.EWS
	switch strings.ToLower(cfg.Auth) {
	case "basic", "":
		return &http.Client{}, nil
	case "ntlm":
		return &http.Client{
			Transport: ntlmssp.Negotiator{RoundTripper: http.DefaultTransport.(*http.Transport).Clone()},
		}, nil
	case "oauth2":
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     "https://login.microsoftonline.com/" + cfg.TenantID + "/oauth2/v2.0/token",
			Scopes:       []string{ewsOAuthScope},
		}
		return cc.Client(f.ctx), nil
	default:
		return nil, fmt.Errorf("unsupported EWS auth %q", cfg.Auth)
	}
}

func (f *SessionFactory) EWS() (*EWSClient, error) {
	httpClient, err := f.ewsHTTPClient()
	if err != nil {
		return nil, err
	}
	return NewEWSClient(f.config.EWS, httpClient), nil
}

func (f *SessionFactory) caldavHTTPClient() (webdav.HTTPClient, error) {
	cfg := f.config.CalDAV
	switch strings.ToLower(cfg.Auth) {
	case "basic", "":
		var httpClient webdav.HTTPClient = http.DefaultClient
		if cfg.Username != "" && cfg.Password != "" {
			httpClient = webdav.HTTPClientWithBasicAuth(httpClient, cfg.Username, cfg.Password)
		}
		return httpClient, nil
	case "digest":
		return &http.Client{
			Transport: dac.NewDigestTransport(cfg.Username, cfg.Password, http.DefaultTransport),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported CalDAV auth %q", cfg.Auth)
	}
}

func (f *SessionFactory) CalDAV() (*CalDAVCalendar, error) {
	httpClient, err := f.caldavHTTPClient()
	if err != nil {
		return nil, err
	}
	return NewCalDAVCalendar(f.ctx, httpClient, f.config.CalDAV)
}

// Database opens the sqlite database if one is configured; it returns nil
// otherwise.
func (f *SessionFactory) Database() (*sql.DB, error) {
	if f.config.Misc.Database == "" {
		return nil, nil
	}
	db, err := openDB(f.config.Misc.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// StateStore prefers the state file and falls back to the database.
func (f *SessionFactory) StateStore(db *sql.DB) (StateStore, error) {
	if f.config.Misc.StateFile != "" {
		return &FileStateStore{Path: f.config.Misc.StateFile}, nil
	}
	if db == nil {
		return nil, fmt.Errorf("no state file or database configured")
	}
	return &DBStateStore{DB: db, Account: f.config.EWS.Account}, nil
}
