package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Loaded captures the resolved config path, parsed values, and non-fatal
// warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool

	viper *viper.Viper
}

// Load resolves, reads, unmarshals, and validates the runtime
// configuration. Missing files fall back to defaults with a warning;
// environment variables (ANBU_*) override file values.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	v := viper.New()
	v.SetConfigFile(resolvedPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ANBU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	loaded := Loaded{Path: resolvedPath, Config: Default(), viper: v}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			loaded.Warnings = append(loaded.Warnings, Warning{
				Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
			})
			if err := Validate(loaded.Config); err != nil {
				return Loaded{}, err
			}
			return loaded, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	if err := v.Unmarshal(&loaded.Config); err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}
	loaded.Exists = true

	if len(loaded.Config.Session.Questions) == 0 {
		loaded.Config.Session.Questions = DefaultQuestions()
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: "no questions configured; using the default question list",
		})
	}

	if err := Validate(loaded.Config); err != nil {
		return Loaded{}, fmt.Errorf("validate config %q: %w", resolvedPath, err)
	}

	return loaded, nil
}

// Watch re-reads the file on change and invokes onChange with the new
// configuration. Invalid rewrites are reported and otherwise ignored; the
// previous configuration stays in effect.
func (l *Loaded) Watch(onChange func(Config), onError func(error)) {
	if l.viper == nil || onChange == nil {
		return
	}
	l.viper.OnConfigChange(func(_ fsnotify.Event) {
		next := Default()
		if err := l.viper.Unmarshal(&next); err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload config %q: %w", l.Path, err))
			}
			return
		}
		if err := Validate(next); err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload config %q: %w", l.Path, err))
			}
			return
		}
		onChange(next)
	})
	l.viper.WatchConfig()
}

// Validate enforces config invariants.
func Validate(cfg Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return err
		}
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			first := fields[0]
			return fmt.Errorf("invalid config field %s: failed %q", first.Namespace(), first.Tag())
		}
		return err
	}

	if _, err := ParseArgv(cfg.TTS.Player); err != nil {
		return fmt.Errorf("invalid tts.player: %w", err)
	}
	if cfg.Capture.VideoDevice != "" && !filepath.IsAbs(cfg.Capture.VideoDevice) {
		return fmt.Errorf("capture.video_device must be an absolute device path")
	}
	return nil
}
