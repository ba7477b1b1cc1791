package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// LocalPath returns the path of the local override file for a config
// file, "seatwatch.json5" becomes "seatwatch.local.json5".
func LocalPath(name string) string {
	prefixname, ext := splitExt(filepath.Base(name))
	if ext == "" {
		return filepath.Join(filepath.Dir(name), prefixname+".local")
	}
	return filepath.Join(
		filepath.Dir(name),
		fmt.Sprintf("%s.local.%s", prefixname, ext),
	)
}

func readJson5[T any](path string) (out T, found bool, err error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(contents) == 0 {
		return out, true, nil
	}
	err = json5.Unmarshal(contents, &out)
	if err != nil {
		return out, true, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, true, nil
}

// reads a configuration file, `name` should come with a file extension,
// it will automatically be lopped off to produce the other extensions.
// this function will merge the following files, where higher number is more prioritized.
// 1. <name>.<ext>
// 2. <name>.local.<ext>
func ReadConfig[T any](name string) (T, error) {
	out, foundDefault, err := readJson5[T](name)
	if err != nil {
		return out, err
	}

	localFilepath := LocalPath(name)
	override, foundLocal, err := readJson5[T](localFilepath)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localFilepath)
	}

	if !foundDefault && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadConfig but it recursively goes up the filesystem until the root
// to find a configuration file matching the name.
func ReadRecursively[T any](name string) (T, error) {
	var defaultOut T

	root, err := filepath.Abs("/")
	if err != nil {
		return defaultOut, err
	}
	current, err := os.Getwd()
	if err != nil {
		return defaultOut, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if err == nil {
			return config, nil
		}
		if !os.IsNotExist(err) {
			return defaultOut, err
		}
		if current == root {
			return defaultOut, os.ErrNotExist
		}
		current = filepath.Dir(current)
	}
}

// WithDefaults fills every zero field of cfg with the matching field of
// defaults, non-zero fields in cfg are left alone. A non-nil pointer
// counts as set even if it points to a zero value.
func WithDefaults[T any](cfg T, defaults T) (T, error) {
	err := mergo.Merge(&cfg, defaults, mergo.WithoutDereference)
	return cfg, err
}
