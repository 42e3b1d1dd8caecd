package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/i474232898/look-pyrenees/internal/scene"
)

// DefaultRetentionDays is the age after which artifacts are removed.
const DefaultRetentionDays = 31

// Retention removes artifacts and provider downloads past their age limit.
type Retention struct {
	Days int
	Log  *slog.Logger
}

// Cutoff returns the first calendar day that is still retained.
func (r Retention) Cutoff(now time.Time) time.Time {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -r.Days)
}

// Expired reports whether the date embedded in name is strictly older than
// the cutoff. Names without a parseable date yield an error and are kept.
func (r Retention) Expired(name string, now time.Time) (bool, error) {
	d, err := scene.ArtifactDate(name)
	if err != nil {
		return false, err
	}
	return d.Before(r.Cutoff(now)), nil
}

// Clean deletes expired entries of dir: .tif and .png artifacts, and S2*
// product downloads whether directories or archives. Other directories
// (such as quicklooks) are cleaned recursively but never removed.
func (r Retention) Clean(dir string, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var removed []string
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(dir, name)
		if strings.HasPrefix(name, ".") {
			continue
		}

		if e.IsDir() && !strings.HasPrefix(name, "S2") {
			sub, err := r.Clean(path, now)
			removed = append(removed, sub...)
			if err != nil {
				return removed, err
			}
			continue
		}
		if !e.IsDir() && !retainable(name) {
			continue
		}

		expired, err := r.Expired(name, now)
		if err != nil {
			r.logger().Warn("retention: skipping entry without date", "path", path, "error", err)
			continue
		}
		if !expired {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
		r.logger().Info("retention: removed", "path", path)
		removed = append(removed, path)
	}
	return removed, nil
}

func retainable(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tif", ".png":
		return true
	case ".zip", ".jpg":
		return strings.HasPrefix(name, "S2")
	}
	return false
}

func (r Retention) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}
