package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	ConfigDirName   = "config"
	DataDirName     = "data"
	CardLiveDirName = "card_live"
	DBDirName       = "db"
	TaxonomyDBName  = "taxa.sqlite"
)

// Layout is the on-disk structure of a CARD:Live home directory.
type Layout struct {
	Home       string
	ConfigDir  string
	DataDir    string
	DBDir      string
	TaxonomyDB string
}

func LayoutFor(home string) Layout {
	home = filepath.Clean(home)
	dbDir := filepath.Join(home, DBDirName)
	return Layout{
		Home:       home,
		ConfigDir:  filepath.Join(home, ConfigDirName),
		DataDir:    filepath.Join(home, DataDirName, CardLiveDirName),
		DBDir:      dbDir,
		TaxonomyDB: filepath.Join(dbDir, TaxonomyDBName),
	}
}

type ConfigWriter interface {
	WriteExample(dir string) error
}

type TaxonomyBuilder interface {
	Build(ctx context.Context, path string) error
}

// Initializer provisions a home directory. Each step checks for an existing
// target first and skips it, so Init can be rerun after a partial failure.
type Initializer struct {
	Config   ConfigWriter
	Taxonomy TaxonomyBuilder
	Logger   *slog.Logger
}

func (in *Initializer) Init(ctx context.Context, home string) (Layout, error) {
	if in.Config == nil || in.Taxonomy == nil {
		return Layout{}, errors.New("initializer requires a config writer and a taxonomy builder")
	}
	logger := in.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	layout := LayoutFor(home)

	created, err := ensureDir(layout.Home, os.Mkdir)
	if err != nil {
		return layout, err
	}
	if created {
		logger.Info("created home directory", "path", layout.Home)
	}

	created, err = ensureDir(layout.ConfigDir, os.Mkdir)
	if err != nil {
		return layout, err
	}
	if created {
		logger.Info("created config directory", "path", layout.ConfigDir)
	}
	// An empty config directory means an earlier run stopped before the
	// example was written.
	empty, err := dirEmpty(layout.ConfigDir)
	if err != nil {
		return layout, err
	}
	if empty {
		if err := in.Config.WriteExample(layout.ConfigDir); err != nil {
			return layout, fmt.Errorf("write example config: %w", err)
		}
		logger.Info("wrote example configuration", "dir", layout.ConfigDir)
	}

	created, err = ensureDir(layout.DataDir, os.MkdirAll)
	if err != nil {
		return layout, err
	}
	if created {
		logger.Info("created data directory", "path", layout.DataDir)
	} else {
		logger.Warn("data directory already exists, skipping", "path", layout.DataDir)
	}

	created, err = ensureDir(layout.DBDir, os.Mkdir)
	if err != nil {
		return layout, err
	}
	if created {
		logger.Info("created database directory", "path", layout.DBDir)
	} else {
		logger.Warn("database directory already exists, skipping", "path", layout.DBDir)
	}

	exists, err := pathExists(layout.TaxonomyDB)
	if err != nil {
		return layout, err
	}
	if exists {
		logger.Warn("taxonomy database already exists, skipping download", "path", layout.TaxonomyDB)
	} else {
		logger.Info("building taxonomy database", "path", layout.TaxonomyDB)
		if err := in.Taxonomy.Build(ctx, layout.TaxonomyDB); err != nil {
			return layout, fmt.Errorf("build taxonomy database: %w", err)
		}
	}

	logger.Info("home directory initialized", "path", layout.Home)
	return layout, nil
}

// ensureDir creates path with mkdir unless it already exists. A non-directory
// in the way is an error.
func ensureDir(path string, mkdir func(string, os.FileMode) error) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%s exists and is not a directory", path)
		}
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := mkdir(path, 0o755); err != nil {
		return false, fmt.Errorf("mkdir %s: %w", path, err)
	}
	return true, nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

func dirEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	return len(entries) == 0, nil
}
