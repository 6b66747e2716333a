// Package config loads engine settings from a TOML file.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/asaskevich/govalidator"

	"github.com/tawqee/docstamp/compose"
)

// DefaultLocation is where Load looks when no path is given.
var DefaultLocation = "./docstamp.conf"

// Config is the root of the config file.
type Config struct {
	LogLevel string `toml:"log_level" valid:"in(debug|info|warn|error)"`
	Env      string `toml:"env" valid:"in(dev|prod)"`
	DPI      int    `toml:"dpi" valid:"range(36|600)"`
	FontFile string `toml:"font_file" valid:"-"`
	Layout   Layout `toml:"layout" valid:"-"`
}

// Layout mirrors compose.LayoutSpec in file form. All values except gap are
// fractions in [0,1].
type Layout struct {
	SignatureX     float64 `toml:"signature_x" valid:"range(0|1)"`
	SignatureY     float64 `toml:"signature_y" valid:"range(0|1)"`
	Margin         float64 `toml:"margin" valid:"range(0|1)"`
	FallbackY      float64 `toml:"fallback_y" valid:"range(0|1)"`
	SignatureScale float64 `toml:"signature_scale" valid:"range(0|1)"`
	CommentsScale  float64 `toml:"comments_scale" valid:"range(0|1)"`
	ListScale      float64 `toml:"list_scale" valid:"range(0|1)"`
	Gap            int     `toml:"gap" valid:"range(0|500)"`
	BlockMaxRatio  float64 `toml:"block_max_ratio" valid:"range(0|1)"`
}

// Default returns a config carrying the engine defaults.
func Default() Config {
	spec := compose.DefaultLayoutSpec()
	return Config{
		LogLevel: "info",
		Env:      "dev",
		DPI:      150,
		Layout: Layout{
			SignatureX:     spec.SignatureX,
			SignatureY:     spec.SignatureY,
			Margin:         spec.Margin,
			FallbackY:      spec.FallbackY,
			SignatureScale: spec.SignatureScale,
			CommentsScale:  spec.CommentsScale,
			ListScale:      spec.ListScale,
			Gap:            spec.Gap,
			BlockMaxRatio:  spec.BlockMaxRatio,
		},
	}
}

// ValidateFields validates all the fields of the config.
func (c Config) ValidateFields() error {
	if _, err := govalidator.ValidateStruct(c); err != nil {
		return err
	}
	if _, err := govalidator.ValidateStruct(c.Layout); err != nil {
		return err
	}
	return nil
}

// LayoutSpec converts the file form into the compositor's value.
func (c Config) LayoutSpec() compose.LayoutSpec {
	return compose.LayoutSpec{
		SignatureX:     c.Layout.SignatureX,
		SignatureY:     c.Layout.SignatureY,
		Margin:         c.Layout.Margin,
		FallbackY:      c.Layout.FallbackY,
		SignatureScale: c.Layout.SignatureScale,
		CommentsScale:  c.Layout.CommentsScale,
		ListScale:      c.Layout.ListScale,
		Gap:            c.Layout.Gap,
		BlockMaxRatio:  c.Layout.BlockMaxRatio,
	}
}

// Load reads and validates a config file. Fields absent from the file keep
// their defaults.
func Load(path string) (Config, error) {
	c := Default()

	if _, err := os.Stat(path); err != nil {
		return c, fmt.Errorf("config file is missing: %s", path)
	}
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return c, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.ValidateFields(); err != nil {
		return c, fmt.Errorf("config is not valid: %w", err)
	}
	return c, nil
}
