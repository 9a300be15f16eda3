package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"github.com/ichi0g0y/slot-roulette/internal/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// MergeStat はプロバイダーごとのマージ結果
type MergeStat struct {
	OldCount int `json:"oldCount"`
	NewCount int `json:"newCount"`
	Added    int `json:"added"`
}

// MergeResult summarizes a merge and the files it touched.
type MergeResult struct {
	Stats      map[string]MergeStat `json:"stats"`
	BackupPath string               `json:"backupPath,omitempty"`
}

// Merge adds scraped game names to the catalog. Existing names are kept;
// names already present (ignoring case) are skipped. Unknown provider ids are
// added as new providers. The new index replaces the current one immediately.
func (c *Catalog) Merge(scraped map[string][]string) MergeResult {
	old := c.cur.Load().file.Providers
	updated := cloneProviders(old)

	for id, games := range scraped {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}

		p, ok := updated[id]
		if !ok {
			p = Provider{Name: displayName(id)}
		}

		seen := make(map[string]bool, len(p.Games))
		for _, g := range p.Games {
			seen[types.NameKey(g)] = true
		}
		for _, g := range games {
			g = cleanGameName(g)
			key := types.NameKey(g)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			p.Games = append(p.Games, g)
		}
		sort.Strings(p.Games)
		updated[id] = p
	}

	stats := make(map[string]MergeStat, len(updated))
	for id, p := range updated {
		oldCount := len(old[id].Games)
		stats[id] = MergeStat{
			OldCount: oldCount,
			NewCount: len(p.Games),
			Added:    len(p.Games) - oldCount,
		}
	}

	c.cur.Store(buildIndex(File{Providers: updated}))
	return MergeResult{Stats: stats}
}

// Save writes the catalog to its backing file. The previous file, if any, is
// copied to "<path>.backup" first. Returns the backup path (empty when there
// was nothing to back up).
func (c *Catalog) Save() (string, error) {
	if c.path == "" {
		return "", ErrNoCatalogFile
	}

	data, err := yaml.Marshal(File{Providers: c.Providers()})
	if err != nil {
		return "", fmt.Errorf("failed to marshal catalog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create catalog dir: %w", err)
	}

	backupPath := ""
	previous, err := os.ReadFile(c.path)
	switch {
	case err == nil:
		backupPath = c.path + ".backup"
		if err := os.WriteFile(backupPath, previous, 0o644); err != nil {
			return "", fmt.Errorf("failed to write catalog backup: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return "", fmt.Errorf("failed to read current catalog: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write catalog: %w", err)
	}

	logger.Info("Catalog saved",
		zap.String("path", c.path),
		zap.String("backup", backupPath),
		zap.Int("games", c.GameCount()))
	return backupPath, nil
}

// MergeAndSave merges, persists and reloads from disk so the in-memory
// lookup matches exactly what was written.
func (c *Catalog) MergeAndSave(scraped map[string][]string) (MergeResult, error) {
	result := c.Merge(scraped)

	backupPath, err := c.Save()
	if err != nil {
		return result, err
	}
	result.BackupPath = backupPath

	if err := c.Reload(); err != nil {
		return result, err
	}
	return result, nil
}

// 改行やタブを空白にして前後の空白を取り除く
func cleanGameName(name string) string {
	name = strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(name)
	return strings.TrimSpace(name)
}
