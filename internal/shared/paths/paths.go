package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	stateFileName = "state.json"
	dbFileName    = "local.db"
)

// dataDir はデータ保存先。SetDataDir で上書きできる。
var dataDir = "data"

// SetDataDir sets the base directory for all persisted files.
func SetDataDir(dir string) {
	if dir == "" {
		return
	}
	dataDir = dir
}

// GetDataDir returns the base data directory.
func GetDataDir() string {
	return dataDir
}

// GetStatePath はセッション状態JSONのパスを返す
func GetStatePath() string {
	return filepath.Join(dataDir, stateFileName)
}

// GetDBPath はSQLiteデータベースのパスを返す
func GetDBPath() string {
	return filepath.Join(dataDir, dbFileName)
}

// EnsureDataDirs creates the data directory if it does not exist.
func EnsureDataDirs() error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir %s: %w", dataDir, err)
	}
	return nil
}
