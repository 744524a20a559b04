// Package backup implements the State Store snapshot behind the `backup
// create <path>` CLI command.
package backup

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/printfleet/printfleet/internal/infrastructure/config"
)

// Create snapshots the configured State Store into dir, returning the
// written file's path. SQLite is backed up by copying the database file;
// Postgres is backed up via pg_dump, matching how each engine is normally
// snapshotted outside the process.
func Create(cfg *config.DatabaseConfig, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("backup: create directory %s: %w", dir, err)
	}
	stamp := time.Now().UTC().Format("20060102T150405Z")

	switch cfg.Type {
	case "sqlite":
		return createSQLite(cfg, dir, stamp)
	case "postgres":
		return createPostgres(cfg, dir, stamp)
	default:
		return "", fmt.Errorf("backup: unsupported database type %q", cfg.Type)
	}
}

func createSQLite(cfg *config.DatabaseConfig, dir, stamp string) (string, error) {
	path := cfg.Path
	if path == "" || path == ":memory:" {
		return "", fmt.Errorf("backup: sqlite database has no on-disk path to snapshot")
	}
	dest := filepath.Join(dir, fmt.Sprintf("printfleet_%s.sqlite", stamp))

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("backup: open source database: %w", err)
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return "", fmt.Errorf("backup: create destination file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("backup: copy database file: %w", err)
	}
	return dest, nil
}

func createPostgres(cfg *config.DatabaseConfig, dir, stamp string) (string, error) {
	dest := filepath.Join(dir, fmt.Sprintf("printfleet_%s.sql", stamp))
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return "", fmt.Errorf("backup: create destination file: %w", err)
	}
	defer out.Close()

	args := []string{"--no-owner", "--format=plain"}
	if cfg.URL != "" {
		args = append(args, cfg.URL)
	} else {
		args = append(args,
			"-h", cfg.Host, "-p", fmt.Sprintf("%d", cfg.Port),
			"-U", cfg.User, "-d", cfg.Name,
		)
	}
	cmd := exec.Command("pg_dump", args...)
	if cfg.URL == "" && cfg.Password != "" {
		cmd.Env = append(os.Environ(), "PGPASSWORD="+cfg.Password)
	}
	cmd.Stdout = out
	stderr, _ := cmd.StderrPipe()
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("backup: start pg_dump: %w", err)
	}
	errOutput, _ := io.ReadAll(stderr)
	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("backup: pg_dump failed: %w: %s", err, errOutput)
	}
	return dest, nil
}
