// Package health tracks liveness of a running command server through the
// modification time of a file. `panelbot health` fails once the file is older
// than maxAge, so the server must keep calling Update (see Run).
package health

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const maxAge = 90 * time.Second

// ErrUnhealthy is returned by Check when the heartbeat is stale.
var ErrUnhealthy = errors.New("unhealthy")

// healthFile is the path to the health file
var healthFile = healthFilePath("/dev/shm", os.TempDir())

const filename = "panelbot_health"

// healthFilePath prefers shmDir on linux when it is a writable directory.
// The health file itself is never touched here: `panelbot health` loads this
// package too and must see the server's last write, not its own.
func healthFilePath(shmDir, tmpDir string) string {
	if runtime.GOOS == "linux" && writableDir(shmDir) {
		return filepath.Join(shmDir, filename)
	}
	return filepath.Join(tmpDir, filename)
}

// writableDir creates and removes a scratch file in dir.
func writableDir(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	scratch, err := os.CreateTemp(dir, "."+filename+"_*")
	if err != nil {
		return false
	}
	name := scratch.Name()
	_ = scratch.Close()
	_ = os.Remove(name)
	return true
}

func touch(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	return file.Close()
}

// Check returns an error if the health file is missing or older than maxAge.
func Check() error {
	fileInfo, err := os.Stat(healthFile)
	if err != nil {
		return err
	}
	if age := time.Since(fileInfo.ModTime()); age > maxAge {
		slog.Warn("Health file is stale", "age", age.Round(time.Second))
		return ErrUnhealthy
	}
	return nil
}

// Update refreshes the modification time of the health file.
func Update() error {
	return touch(healthFile)
}

// CleanUp removes the health file.
func CleanUp() error {
	return os.Remove(healthFile)
}

// Run updates the health file every interval until ctx is done, then removes it.
func Run(ctx context.Context, interval time.Duration) {
	if err := Update(); err != nil {
		slog.Warn("Failed to update health file", "err", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := CleanUp(); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("Failed to remove health file", "err", err)
			}
			return
		case <-ticker.C:
			if err := Update(); err != nil {
				slog.Warn("Failed to update health file", "err", err)
			}
		}
	}
}
