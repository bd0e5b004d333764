package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/example/go-quicktok/internal/bpe"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig `mapstructure:"paths"`
	Train    TrainConfig `mapstructure:"train"`
	LogLevel string      `mapstructure:"log_level"`
}

type PathsConfig struct {
	CorpusPath string `mapstructure:"corpus_path"`
	ModelPath  string `mapstructure:"model_path"`
	VocabPath  string `mapstructure:"vocab_path"`
}

type TrainConfig struct {
	VocabSize int   `mapstructure:"vocab_size"`
	Threads   int   `mapstructure:"threads"`
	MaxBytes  int64 `mapstructure:"max_bytes"`
	SaveVocab bool  `mapstructure:"save_vocab"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			CorpusPath: "",
			ModelPath:  "models/quicktok.model",
			VocabPath:  "",
		},
		Train: TrainConfig{
			VocabSize: 512,
			Threads:   1,
			MaxBytes:  0,
			SaveVocab: false,
		},
		LogLevel: "info",
	}
}

// flagKeys maps each registered flag to the config key it sets.
var flagKeys = map[string]string{
	"corpus":     "paths.corpus_path",
	"model":      "paths.model_path",
	"vocab":      "paths.vocab_path",
	"vocab-size": "train.vocab_size",
	"threads":    "train.threads",
	"max-bytes":  "train.max_bytes",
	"save-vocab": "train.save_vocab",
	"log-level":  "log_level",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("corpus", defaults.Paths.CorpusPath, "Path to the training corpus")
	fs.String("model", defaults.Paths.ModelPath, "Path to the model file (.model or .safetensors)")
	fs.String("vocab", defaults.Paths.VocabPath, "Path to the vocab dump (default: model path with .vocab when --save-vocab)")
	fs.Int("vocab-size", defaults.Train.VocabSize, "Target vocabulary size (>= 256)")
	fs.Int("threads", defaults.Train.Threads, "Pair counting worker count")
	fs.Int64("max-bytes", defaults.Train.MaxBytes, "Train on the first N corpus bytes only (0 = all)")
	fs.Bool("save-vocab", defaults.Train.SaveVocab, "Also write the human-readable vocab dump")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	v.SetEnvPrefix("QUICKTOK")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("quicktok")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Validate checks the training settings.
func (c Config) Validate() error {
	if c.Train.VocabSize < bpe.NumBytes {
		return fmt.Errorf("%w: train.vocab_size %d must be at least %d", bpe.ErrConfig, c.Train.VocabSize, bpe.NumBytes)
	}
	if c.Train.Threads < 1 {
		return fmt.Errorf("%w: train.threads %d must be at least 1", bpe.ErrConfig, c.Train.Threads)
	}
	if c.Train.MaxBytes < 0 {
		return fmt.Errorf("%w: train.max_bytes %d must not be negative", bpe.ErrConfig, c.Train.MaxBytes)
	}
	return nil
}

// ResolvedVocabPath returns where the vocab dump goes, or "" when it is not
// wanted. An explicit paths.vocab_path wins; otherwise the model path's
// extension is replaced with ".vocab".
func (c Config) ResolvedVocabPath() string {
	if c.Paths.VocabPath != "" {
		return c.Paths.VocabPath
	}
	if !c.Train.SaveVocab {
		return ""
	}
	model := c.Paths.ModelPath
	return strings.TrimSuffix(model, filepath.Ext(model)) + ".vocab"
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.corpus_path", c.Paths.CorpusPath)
	v.SetDefault("paths.model_path", c.Paths.ModelPath)
	v.SetDefault("paths.vocab_path", c.Paths.VocabPath)
	v.SetDefault("train.vocab_size", c.Train.VocabSize)
	v.SetDefault("train.threads", c.Train.Threads)
	v.SetDefault("train.max_bytes", c.Train.MaxBytes)
	v.SetDefault("train.save_vocab", c.Train.SaveVocab)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags binds flags to their dotted keys directly rather than through
// aliases, so nested keys in a config file still resolve.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
