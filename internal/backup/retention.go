package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// listSnapshots reads the snapshot files in dir, newest first. The timestamp
// comes from the file name; files with other names fall back to ModTime.
func listSnapshots(dir string) ([]Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var out []Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, Snapshot{
			Path:      filepath.Join(dir, entry.Name()),
			Timestamp: snapshotTime(entry.Name(), info.ModTime()),
			Size:      info.Size(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func snapshotTime(name string, fallback time.Time) time.Time {
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if t, err := time.Parse(fileLayout, stamp); err == nil {
		return t
	}
	return fallback
}

// applyRetention deletes snapshots beyond each tier's quota and everything
// older than a year. It returns how many files were removed.
func applyRetention(dir string, policy RetentionPolicy, now time.Time) (int, error) {
	snapshots, err := listSnapshots(dir)
	if err != nil {
		return 0, err
	}

	tiers := []struct {
		maxAge time.Duration
		keep   int
		kept   int
	}{
		{24 * time.Hour, policy.Hourly, 0},
		{7 * 24 * time.Hour, policy.Daily, 0},
		{30 * 24 * time.Hour, policy.Weekly, 0},
		{365 * 24 * time.Hour, policy.Monthly, 0},
	}

	var doomed []string
	for _, snap := range snapshots {
		age := now.Sub(snap.Timestamp)
		placed := false
		for i := range tiers {
			if age >= tiers[i].maxAge {
				continue
			}
			placed = true
			if tiers[i].kept < tiers[i].keep {
				tiers[i].kept++
			} else {
				doomed = append(doomed, snap.Path)
			}
			break
		}
		if !placed {
			doomed = append(doomed, snap.Path)
		}
	}

	var errs []error
	removed := 0
	for _, path := range doomed {
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("failed to delete some snapshots: %w", errors.Join(errs...))
	}
	return removed, nil
}

// diskUsage is the total size of all snapshots in dir.
func diskUsage(dir string) (int64, error) {
	snapshots, err := listSnapshots(dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, s := range snapshots {
		total += s.Size
	}
	return total, nil
}
