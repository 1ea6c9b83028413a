package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FileName        = "cardlive.yaml"
	ExampleFileName = FileName + ".example"

	DefaultTaxonomyURL = "https://ftp.ncbi.nlm.nih.gov/pub/taxonomy/taxdump.tar.gz"

	dateLayout = "2006-01-02"
)

type Config struct {
	URLBasePathname   string `yaml:"url_base_pathname"`
	AutoUpdateMinutes int    `yaml:"auto_update_minutes"`
	// Samples stamped before this date with geo area 10 (Antarctica) had the
	// region left at the old form default and are reported as N/A instead.
	AntarcticaNABefore string `yaml:"antarctica_na_before"`
	TaxonomyURL        string `yaml:"taxonomy_url"`
}

func Default() Config {
	return Config{
		URLBasePathname:    "/",
		AutoUpdateMinutes:  10,
		AntarcticaNABefore: "2020-07-20",
		TaxonomyURL:        DefaultTaxonomyURL,
	}
}

// Load reads dir/cardlive.yaml over the defaults, then applies CARDLIVE_*
// environment overrides. A missing file is not an error.
func Load(dir string) (Config, error) {
	cfg := Default()
	path := filepath.Join(dir, FileName)
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.URLBasePathname = getEnv("CARDLIVE_URL_BASE_PATHNAME", cfg.URLBasePathname)
	cfg.AntarcticaNABefore = getEnv("CARDLIVE_ANTARCTICA_NA_BEFORE", cfg.AntarcticaNABefore)
	cfg.TaxonomyURL = getEnv("CARDLIVE_TAXONOMY_URL", cfg.TaxonomyURL)
	if v := os.Getenv("CARDLIVE_AUTO_UPDATE_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("CARDLIVE_AUTO_UPDATE_MINUTES: %w", err)
		}
		cfg.AutoUpdateMinutes = n
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.URLBasePathname, "/") {
		return fmt.Errorf("url_base_pathname must start with '/', got %q", c.URLBasePathname)
	}
	if !strings.HasSuffix(c.URLBasePathname, "/") {
		c.URLBasePathname += "/"
	}
	if c.AutoUpdateMinutes < 0 {
		return fmt.Errorf("auto_update_minutes must not be negative, got %d", c.AutoUpdateMinutes)
	}
	if c.AntarcticaNABefore != "" {
		if _, err := time.Parse(dateLayout, c.AntarcticaNABefore); err != nil {
			return fmt.Errorf("antarctica_na_before: %w", err)
		}
	}
	return nil
}

// AntarcticaThreshold is zero when the correction is disabled.
func (c Config) AntarcticaThreshold() time.Time {
	if c.AntarcticaNABefore == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dateLayout, c.AntarcticaNABefore)
	return t
}

func (c Config) AutoUpdateInterval() time.Duration {
	return time.Duration(c.AutoUpdateMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
