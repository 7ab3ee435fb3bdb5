package configutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func localVariant(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

func parseInto[T any](path string, out *T) (found bool, err error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json5.Unmarshal(contents, out)
}

// ReadConfig reads a json5 configuration file. If a sibling file named
// <name>.local.<ext> exists, its values override the base file's, so
// machine-specific settings can live outside version control.
func ReadConfig[T any](name string) (T, error) {
	var base T
	foundBase, err := parseInto(name, &base)
	if err != nil {
		return base, err
	}

	var local T
	localPath := localVariant(name)
	foundLocal, err := parseInto(localPath, &local)
	if err != nil {
		return base, err
	}
	if foundLocal {
		err = mergo.Merge(&base, local, mergo.WithOverride)
		if err != nil {
			return base, err
		}
		slog.Info("merging config with local overrides", "local", localPath)
	}

	if !foundBase && !foundLocal {
		return base, os.ErrNotExist
	}
	return base, nil
}

// ReadRecursively walks up the filesystem from the working directory until
// it finds a configuration file matching the given name.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	dir, err := os.Getwd()
	if err != nil {
		return zero, err
	}
	for {
		out, err := ReadConfig[T](filepath.Join(dir, name))
		if err == nil {
			return out, nil
		}
		if !os.IsNotExist(err) {
			return zero, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return zero, os.ErrNotExist
		}
		dir = parent
	}
}
