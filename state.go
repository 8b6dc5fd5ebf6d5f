package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// StateStore keeps the opaque Exchange sync token between runs.
// An empty token means "sync everything".
type StateStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Reset(ctx context.Context) error
}

// FileStateStore keeps the token as the entire content of a file.
type FileStateStore struct {
	Path string
}

func (s *FileStateStore) Load(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading state file: %w", err)
	}
	return string(data), nil
}

func (s *FileStateStore) Save(ctx context.Context, token string) error {
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".ewssync-state-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

func (s *FileStateStore) Reset(ctx context.Context) error {
	err := os.Remove(s.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}

// DBStateStore keeps one token per Exchange account in sqlite.
type DBStateStore struct {
	DB      *sql.DB
	Account string
}

func (s *DBStateStore) Load(ctx context.Context) (string, error) {
	var token string
	err := s.DB.QueryRowContext(ctx, "SELECT token FROM sync_state WHERE account = ?", s.Account).Scan(&token)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading sync state: %w", err)
	}
	return token, nil
}

func (s *DBStateStore) Save(ctx context.Context, token string) error {
	_, err := s.DB.ExecContext(ctx, "INSERT OR REPLACE INTO sync_state (account, token, updated_at) VALUES (?, ?, ?)",
		s.Account, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving sync state: %w", err)
	}
	return nil
}

func (s *DBStateStore) Reset(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, "DELETE FROM sync_state WHERE account = ?", s.Account)
	if err != nil {
		return fmt.Errorf("clearing sync state: %w", err)
	}
	return nil
}
