package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"github.com/ichi0g0y/slot-roulette/internal/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// UnknownCategory はカタログに無いゲームのカテゴリ
const UnknownCategory = "Unknown"

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// 既知プロバイダーの表示名。スクレイプ結果に新しいIDが来た場合もここから引く。
var providerDisplayNames = map[string]string{
	"netent":      "NetEnt",
	"hacksaw":     "Hacksaw Gaming",
	"playngo":     "Play'n GO",
	"pragmatic":   "Pragmatic Play",
	"nolimit":     "Nolimit City",
	"push":        "Push Gaming",
	"elk":         "ELK Studios",
	"lightwonder": "Light & Wonder",
}

var ErrNoCatalogFile = errors.New("catalog has no backing file")

// Provider は1プロバイダー分のゲーム一覧
type Provider struct {
	Name  string   `yaml:"name" json:"name"`
	Games []string `yaml:"games" json:"games"`
}

// File is the on-disk YAML layout.
type File struct {
	Providers map[string]Provider `yaml:"providers"`
}

type index struct {
	file   File
	ids    []string          // プロバイダーIDのソート済み一覧
	byName map[string]string // NameKey(game) -> provider id
}

// Catalog maps game names to provider categories. Lookups are lock-free;
// Reload and Merge swap the whole index.
type Catalog struct {
	path string
	cur  atomic.Pointer[index]
}

// New builds an in-memory catalog without a backing file.
func New(f File) *Catalog {
	c := &Catalog{}
	c.cur.Store(buildIndex(f))
	return c
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	f, err := parse(defaultCatalogYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded catalog: %w", err)
	}
	return New(f), nil
}

// Load reads the catalog at path. A missing file falls back to the embedded
// default; the path is still remembered so Save can create it.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	c := &Catalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the backing file.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return ErrNoCatalogFile
	}

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("Catalog file not found, using embedded default", zap.String("path", c.path))
		data = defaultCatalogYAML
	} else if err != nil {
		return fmt.Errorf("failed to read catalog %s: %w", c.path, err)
	}

	f, err := parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse catalog %s: %w", c.path, err)
	}

	idx := buildIndex(f)
	c.cur.Store(idx)

	logger.Info("Catalog loaded",
		zap.Int("games", len(idx.byName)),
		zap.Int("providers", len(idx.ids)))
	return nil
}

// Path returns the backing file path (empty for in-memory catalogs).
func (c *Catalog) Path() string {
	return c.path
}

// Lookup returns the category for a game name, or UnknownCategory.
func (c *Catalog) Lookup(name string) string {
	idx := c.cur.Load()
	id, ok := idx.byName[types.NameKey(name)]
	if !ok {
		return UnknownCategory
	}
	return idx.file.Providers[id].Name
}

// Categories returns every provider display name in provider id order.
func (c *Catalog) Categories() []string {
	idx := c.cur.Load()
	names := make([]string, 0, len(idx.ids))
	for _, id := range idx.ids {
		names = append(names, idx.file.Providers[id].Name)
	}
	return names
}

// Providers returns a copy of the provider table.
func (c *Catalog) Providers() map[string]Provider {
	return cloneProviders(c.cur.Load().file.Providers)
}

// GameCount returns the number of distinct game names.
func (c *Catalog) GameCount() int {
	return len(c.cur.Load().byName)
}

func parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, err
	}
	if f.Providers == nil {
		f.Providers = map[string]Provider{}
	}
	for id, p := range f.Providers {
		if strings.TrimSpace(p.Name) == "" {
			p.Name = displayName(id)
			f.Providers[id] = p
		}
	}
	return f, nil
}

func buildIndex(f File) *index {
	idx := &index{
		file:   File{Providers: cloneProviders(f.Providers)},
		byName: make(map[string]string),
	}
	for id := range idx.file.Providers {
		idx.ids = append(idx.ids, id)
	}
	sort.Strings(idx.ids)

	// 同名ゲームが複数プロバイダーにある場合はID順で後勝ち
	for _, id := range idx.ids {
		for _, game := range idx.file.Providers[id].Games {
			key := types.NameKey(game)
			if key == "" {
				continue
			}
			idx.byName[key] = id
		}
	}
	return idx
}

func cloneProviders(in map[string]Provider) map[string]Provider {
	out := make(map[string]Provider, len(in))
	for id, p := range in {
		out[id] = Provider{Name: p.Name, Games: append([]string{}, p.Games...)}
	}
	return out
}

func displayName(id string) string {
	if name, ok := providerDisplayNames[id]; ok {
		return name
	}
	return id
}
