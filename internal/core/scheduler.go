package core

// scheduler.go runs the upload janitor: uploads that were previewed but never
// confirmed are removed once they are older than MaxAge. It runs once on
// start and then every Interval until the context ends. Failures are logged
// and retried on the next run.

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// JanitorConfig configures StartUploadJanitor.
type JanitorConfig struct {
	MaxAge   time.Duration // default 24h
	Interval time.Duration // default 1h
}

// StartUploadJanitor blocks, cleaning the upload directory periodically,
// and returns when ctx is cancelled.
func (s *Service) StartUploadJanitor(ctx context.Context, cfg JanitorConfig) {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	slog.Info("upload janitor started", "dir", s.uploadDir, "max_age", cfg.MaxAge, "interval", cfg.Interval)

	s.runJanitor(cfg.MaxAge)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("upload janitor stopped")
			return
		case <-ticker.C:
			s.runJanitor(cfg.MaxAge)
		}
	}
}

func (s *Service) runJanitor(maxAge time.Duration) {
	start := time.Now()
	removed, err := s.RemoveStaleUploads(maxAge)
	if err != nil {
		slog.Error("upload cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("removed stale uploads", "count", removed, "duration_ms", time.Since(start).Milliseconds())
	}
}

// RemoveStaleUploads deletes uploads last modified more than maxAge ago and
// returns how many were removed. Uploads being previewed or imported are
// kept; claims wait until the scan is done.
func (s *Service) RemoveStaleUploads(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		return 0, err
	}

	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	cutoff := s.opts.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), uploadExt) {
			continue
		}
		if s.claimed[e.Name()] > 0 {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.uploadDir, e.Name())); err != nil {
			slog.Warn("remove stale upload", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
