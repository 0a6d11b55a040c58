package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Selectors names the CSS selectors used to pull products out of a listing page.
type Selectors struct {
	Listing        string `yaml:"listing"`
	Item           string `yaml:"item"`
	Title          string `yaml:"title"`
	TitleAnchor    string `yaml:"title_anchor"`
	OldPrice       string `yaml:"old_price"`
	SpecialPrice   string `yaml:"special_price"`
	PriceValue     string `yaml:"price_value"`
	Discount       string `yaml:"discount"`
	PriceWrapper   string `yaml:"price_wrapper"`
	AfterSpecial   string `yaml:"after_special"`
	ImageAnchor    string `yaml:"image_anchor"`
	Image          string `yaml:"image"`
	NextPageAnchor string `yaml:"next_page"`
}

// DefaultSelectors matches the mifarma.es category markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Listing:        "div.listado-completo",
		Item:           "li.item",
		Title:          "h2.product-name",
		TitleAnchor:    "a",
		OldPrice:       "p.old-price",
		SpecialPrice:   "p.special-price",
		PriceValue:     "span.price",
		Discount:       "span.descuento",
		PriceWrapper:   "div.price-wrapper",
		AfterSpecial:   "span.after-special",
		ImageAnchor:    "a.product-image",
		Image:          "img",
		NextPageAnchor: "a.i-next",
	}
}

func (s Selectors) validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"listing", s.Listing},
		{"item", s.Item},
		{"title", s.Title},
		{"title_anchor", s.TitleAnchor},
		{"old_price", s.OldPrice},
		{"special_price", s.SpecialPrice},
		{"price_value", s.PriceValue},
		{"discount", s.Discount},
		{"price_wrapper", s.PriceWrapper},
		{"after_special", s.AfterSpecial},
		{"image_anchor", s.ImageAnchor},
		{"image", s.Image},
		{"next_page", s.NextPageAnchor},
	}
	for _, field := range fields {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("selector %q cannot be empty", field.name)
		}
	}
	return nil
}

// Config holds scraper configuration.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	MaxPages       int           `yaml:"max_pages"` // 0 follows next-page links until they run out
	Timeout        time.Duration `yaml:"timeout"`   // 0 disables the per-request timeout
	UserAgent      string        `yaml:"user_agent"`
	SameHostOnly   bool          `yaml:"same_host_only"` // refuse next-page links that leave the base URL's host
	DownloadImages bool          `yaml:"download_images"`
	ImagesDir      string        `yaml:"images_dir"`
	ImageCacheSize int           `yaml:"image_cache_size"`
	OutputFile     string        `yaml:"output_file"`
	OutputFormat   string        `yaml:"output_format"` // csv, json, or dual
	Verbose        bool          `yaml:"verbose"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	Selectors      Selectors     `yaml:"selectors"`
}

// DefaultConfig returns the settings for the sunscreen category crawl.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "https://www.mifarma.es/cosmetica-y-belleza/sol/protectores-solares/",
		MaxPages:       0,
		Timeout:        0,
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		DownloadImages: true,
		ImagesDir:      "data/mifarma",
		ImageCacheSize: 4096,
		OutputFile:     "data/mifarma.csv",
		OutputFormat:   "csv",
		Verbose:        false,
		Selectors:      DefaultSelectors(),
	}
}

// LoadFile overlays the YAML document at path onto cfg. Keys missing from
// the file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.DownloadImages {
		if c.ImagesDir == "" {
			return fmt.Errorf("images dir cannot be empty when image downloads are enabled")
		}
		if c.ImageCacheSize <= 0 {
			return fmt.Errorf("image cache size must be positive")
		}
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return c.Selectors.validate()
}
