// Package config loads stamp settings from embedded defaults, the user's config file,
// the template manifest, an explicit file and STAMP_ environment variables, in that order.
package config

import (
	_ "embed"
	"errors"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/quintans/faults"
	"github.com/spf13/afero"

	"github.com/quintans/stamp"
)

//go:embed defaults.yaml
var defaultConfig []byte

// ManifestNames are the files looked up in the template root, first match wins.
var ManifestNames = []string{".stamp.yaml", ".stamp.yml", ".stamp.toml"}

const envPrefix = "STAMP_"

type Config struct {
	Tokens           Tokens    `koanf:"tokens"`
	Derived          []Derived `koanf:"derived"`
	Exclude          Exclude   `koanf:"exclude"`
	BinaryExtensions []string  `koanf:"binary_extensions"`
	Git              Git       `koanf:"git"`
	Open             Open      `koanf:"open"`
}

type Tokens struct {
	Name    string `koanf:"name"`
	Subtype string `koanf:"subtype"`
}

// Derived declares a token computed from the run parameters, e.g. {{ .Name | lower }}.
type Derived struct {
	Token string `koanf:"token"`
	Value string `koanf:"value"`
}

type Exclude struct {
	Dirs  []string `koanf:"dirs"`
	Files []string `koanf:"files"`
}

type Git struct {
	Enabled bool   `koanf:"enabled"`
	Command string `koanf:"command"`
}

type Open struct {
	Command string `koanf:"command"`
	Path    string `koanf:"path"`
}

// Sources tells Load where to look. Empty fields are skipped.
type Sources struct {
	// UserFile is the per-user config, see UserConfigFile.
	UserFile string
	// TemplateFS and TemplateRoot locate the template manifest.
	TemplateFS   afero.Fs
	TemplateRoot string
	// File is a config file named on the command line. It must exist.
	File string
}

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// UserConfigFile returns the user's config file under XDG_CONFIG_HOME or the XDG config dirs,
// or an empty string when there is none.
func UserConfigFile() string {
	for _, name := range []string{"stamp/config.yaml", "stamp/config.toml"} {
		if path, err := xdg.SearchConfigFile(name); err == nil {
			return path
		}
	}
	return ""
}

func Load(src Sources) (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, yaml.Parser()); err != nil {
		return nil, faults.Errorf("failed to load defaults: %w", err)
	}

	// 2. User config
	if src.UserFile != "" {
		if err := k.Load(file.Provider(src.UserFile), parserFor(src.UserFile)); err != nil {
			return nil, faults.Errorf("failed to load user config from %s: %w", src.UserFile, err)
		}
	}

	// 3. Template manifest
	if src.TemplateFS != nil {
		for _, name := range ManifestNames {
			path := filepath.Join(src.TemplateRoot, name)
			data, err := afero.ReadFile(src.TemplateFS, path)
			if err != nil {
				continue
			}
			if err := k.Load(&rawBytesProvider{bytes: data}, parserFor(path)); err != nil {
				return nil, faults.Errorf("failed to load template manifest %s: %w", path, err)
			}
			break
		}
	}

	// 4. Explicit file
	if src.File != "" {
		if err := k.Load(file.Provider(src.File), parserFor(src.File)); err != nil {
			return nil, faults.Errorf("failed to load config from %s: %w", src.File, err)
		}
	}

	// 5. Environment, STAMP_OPEN__COMMAND sets open.command
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, faults.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, faults.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.Tokens.Name == "" {
		return nil, faults.New("tokens.name must not be empty")
	}
	return &cfg, nil
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Parser()
	}
	return yaml.Parser()
}

func (c *Config) Exclusions() stamp.ExclusionPolicy {
	return stamp.ExclusionPolicy{
		Dirs:  c.Exclude.Dirs,
		Files: c.Exclude.Files,
	}
}

func (c *Config) Classification() stamp.ClassificationPolicy {
	return stamp.ClassificationPolicy{BinaryExtensions: c.BinaryExtensions}
}

// Substitutions builds the substitution map of a run: the name token, the subtype token when a
// subtype is given, the derived tokens, then extra in its own order.
func (c *Config) Substitutions(params stamp.Params, extra stamp.Substitutions) (stamp.Substitutions, error) {
	subs := stamp.Substitutions{{Placeholder: c.Tokens.Name, Value: params.Name}}
	if params.Subtype != "" {
		if c.Tokens.Subtype == "" {
			return nil, faults.New("a subtype was given but tokens.subtype is empty")
		}
		subs = append(subs, stamp.Token{Placeholder: c.Tokens.Subtype, Value: params.Subtype})
	}

	defs := make([]stamp.Derived, 0, len(c.Derived))
	for _, d := range c.Derived {
		defs = append(defs, stamp.Derived{Token: d.Token, Value: d.Value})
	}
	derived, err := stamp.RenderDerived(defs, params, nil)
	if err != nil {
		return nil, faults.Wrap(err)
	}
	subs = append(subs, derived...)
	subs = append(subs, extra...)
	return subs, nil
}
