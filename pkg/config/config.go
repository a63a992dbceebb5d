package config

import (
	"strings"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/multiagent-debugger/pkgbuild/pkg/builder"
)

// Config describes all configuration options
type Config struct {
	Venv     string `toml:"venv" default:".venv" usage:"Virtual environment directory"`
	Python   string `toml:"python" usage:"Interpreter used to create the virtual environment (defaults to python3, python on Windows)"`
	Metadata string `toml:"metadata" default:"multiagent_debugger.egg-info" usage:"Package metadata directory removed by clean"`
	BuildDir string `toml:"build_dir" default:"build" usage:"Build output directory"`
	DistDir  string `toml:"dist_dir" default:"dist" usage:"Distribution output directory"`
	Index    struct {
		TestURL string `toml:"test_url" default:"https://test.pypi.org/legacy/" usage:"Upload URL used by upload_test"`
		URL     string `toml:"url" usage:"Upload URL used by upload (twine's default if empty)"`
	} `toml:"index"`
	Log struct {
		Level string `toml:"level" default:"info"`
		JSON  bool   `toml:"json" default:"false" usage:"Output JSONND instead of pretty console messages"`
	} `toml:"log"`
}

var logLevels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

// Loader initializes an empty config object and returns a new Loader for this object.
// Values are read from pkgbuild.toml and the passed extra files. The environment is never consulted.
func Loader(extraFiles ...string) (*Config, *aconfig.Loader) {
	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipEnv:   true,
		SkipFlags: true,
		Files:     append([]string{"pkgbuild.toml"}, extraFiles...),
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Load reads the configuration and validates it
func Load(extraFiles ...string) (*Config, error) {
	cfg, loader := Loader(extraFiles...)
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "Failed to load config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	_, ok := logLevels[strings.ToLower(cfg.Log.Level)]
	if !ok {
		return eris.Errorf(`Invalid value for log.level: %s`, cfg.Log.Level)
	}

	dirs := map[string]string{
		"venv":      cfg.Venv,
		"metadata":  cfg.Metadata,
		"build_dir": cfg.BuildDir,
		"dist_dir":  cfg.DistDir,
	}
	for name, value := range dirs {
		if strings.TrimSpace(value) == "" {
			return eris.Errorf(`Invalid value for %s: must not be empty`, name)
		}
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	return logLevels[strings.ToLower(cfg.Log.Level)]
}

// BuilderOptions converts the config into options for builder.New
func (cfg *Config) BuilderOptions() builder.Options {
	return builder.Options{
		EnvDir:       cfg.Venv,
		Python:       cfg.Python,
		BuildDir:     cfg.BuildDir,
		DistDir:      cfg.DistDir,
		MetadataDir:  cfg.Metadata,
		TestIndexURL: cfg.Index.TestURL,
		IndexURL:     cfg.Index.URL,
	}
}
