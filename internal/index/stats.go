package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const statsCacheFileName = "stats-cache.json"

// ReadStatsCache loads the mirrored global stats snapshot. A missing or
// malformed file is an error the caller downgrades to a nil-stats index.
func ReadStatsCache(dataDir string) (*GlobalStats, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, statsCacheFileName))
	if err != nil {
		return nil, fmt.Errorf("reading stats cache: %w", err)
	}
	var stats GlobalStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decoding stats cache: %w", err)
	}
	return &stats, nil
}
