package cmd

import (
	"path/filepath"

	"github.com/forgebuild/forge/internal/config"
)

// cacheDir returns the directory containing the action cache file, the
// checkpoint, and the execution history.
func cacheDir(cfg *config.Config) string {
	if cfg.Cache.Dir == "" {
		return ".builder-cache"
	}
	return filepath.Dir(cfg.Cache.Dir)
}

func checkpointPath(cfg *config.Config) string {
	return filepath.Join(cacheDir(cfg), "checkpoint.json")
}

func executionHistoryPath(cfg *config.Config) string {
	return filepath.Join(cacheDir(cfg), "execution-history.json")
}
