package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/manifest"
)

// SeedResult counts what a seed pass did.
type SeedResult struct {
	Loaded int
	Failed int
}

// Seeder registers apps found on disk as <dir>/<folder>/app.config.*.
// A manifest whose ID matches a shipped app replaces its metadata.
type Seeder struct {
	catalog *Catalog
	logger  *zap.Logger
}

// NewSeeder creates a seeder for c.
func NewSeeder(c *Catalog) *Seeder {
	return &Seeder{catalog: c, logger: c.logger.Named("seeder")}
}

// Seed scans the apps directory. A missing directory is not an error.
func (s *Seeder) Seed(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	dir := s.catalog.Dir()

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		s.logger.Info("Apps directory not found", zap.String("dir", dir))
		return res, nil
	}

	configs, err := s.findConfigs(ctx, dir)
	if err != nil {
		return res, err
	}

	folders := make([]string, 0, len(configs))
	for folder := range configs {
		folders = append(folders, folder)
	}
	sort.Strings(folders)

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.load(folder, configs[folder]); err != nil {
			s.logger.Warn("Failed to seed app", zap.String("folder", folder), zap.Error(err))
			res.Failed++
			continue
		}
		res.Loaded++
	}

	s.logger.Info("Seeding complete", zap.Int("loaded", res.Loaded), zap.Int("failed", res.Failed))
	return res, nil
}

// findConfigs maps each app folder to its preferred manifest path.
func (s *Seeder) findConfigs(ctx context.Context, dir string) (map[string]string, error) {
	var (
		mu      sync.Mutex
		configs = map[string]string{}
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			return nil
		}
		rel, rerr := filepath.Rel(dir, p)
		if rerr != nil || rel == "." {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")

		if d.IsDir() {
			if len(parts) > 1 || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if len(parts) != 2 {
			return nil
		}
		rank := slices.Index(manifest.ConfigNames, strings.ToLower(parts[1]))
		if rank < 0 {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		if prev, ok := configs[parts[0]]; ok {
			if slices.Index(manifest.ConfigNames, strings.ToLower(filepath.Base(prev))) < rank {
				return nil
			}
		}
		configs[parts[0]] = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return configs, nil
}

func (s *Seeder) load(folder, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}
	m, err := manifest.Decode(configPath, data)
	if err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = folder
	}

	for _, b := range Builtins() {
		if b.ID == m.ID {
			inherit(m, &b)
			break
		}
	}

	if err := s.catalog.PutBuiltin(*m, folder); err != nil {
		return err
	}
	s.logger.Debug("Seeded app", zap.String("app_id", m.ID), zap.String("folder", folder))
	return nil
}

// inherit fills fields the on-disk manifest left empty from a shipped one.
func inherit(m, from *manifest.Manifest) {
	if m.Name == "" {
		m.Name = from.Name
	}
	if m.Version == "" {
		m.Version = from.Version
	}
	if m.Description == "" {
		m.Description = from.Description
	}
	if m.Author == "" {
		m.Author = from.Author
	}
	if len(m.Tags) == 0 {
		m.Tags = from.Tags
	}
	if m.Icon == "" {
		m.Icon = from.Icon
	}
}
