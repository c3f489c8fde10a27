// Package setup creates the client data directory.
package setup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/msageha/contentbook/internal/model"
	"github.com/msageha/contentbook/internal/sim"
	atomicyaml "github.com/msageha/contentbook/internal/yaml"
	"github.com/msageha/contentbook/templates"
)

const (
	DataDir    = ".contentbook"
	ConfigFile = "config.yaml"
	BookFile   = "book.yaml"
)

// Run creates DataDir under projectDir with a default config and a sample
// content book. It fails if the directory already exists.
func Run(projectDir string) (string, error) {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return "", fmt.Errorf("resolve project dir: %w", err)
	}

	base := filepath.Join(absDir, DataDir)
	if _, err := os.Stat(base); err == nil {
		return "", fmt.Errorf("%s already exists", base)
	}

	for _, d := range []string{"logs", atomicyaml.QuarantineDir} {
		if err := os.MkdirAll(filepath.Join(base, d), 0o755); err != nil {
			return "", fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	// Templates are parsed before writing so a broken embed never lands on disk.
	cfgData, err := fs.ReadFile(templates.FS, ConfigFile)
	if err != nil {
		return "", fmt.Errorf("read config template: %w", err)
	}
	if _, err := model.ParseConfig(cfgData); err != nil {
		return "", fmt.Errorf("config template: %w", err)
	}
	if err := atomicyaml.AtomicWriteRaw(filepath.Join(base, ConfigFile), cfgData); err != nil {
		return "", fmt.Errorf("write %s: %w", ConfigFile, err)
	}

	bookData, err := fs.ReadFile(templates.FS, BookFile)
	if err != nil {
		return "", fmt.Errorf("read book template: %w", err)
	}
	if _, err := sim.ParseFixture(bookData); err != nil {
		return "", fmt.Errorf("book template: %w", err)
	}
	if err := atomicyaml.AtomicWriteRaw(filepath.Join(base, BookFile), bookData); err != nil {
		return "", fmt.Errorf("write %s: %w", BookFile, err)
	}

	return base, nil
}

// LoadConfig reads the config in dir. A file that no longer parses is
// quarantined and replaced by its backup or by the defaults; recovered
// reports whether that happened.
func LoadConfig(dir string) (cfg model.Config, recovered *atomicyaml.Recovery, err error) {
	path := filepath.Join(dir, ConfigFile)
	cfg, err = model.LoadConfig(path)
	if err == nil {
		return cfg, nil, nil
	}

	rec, rerr := atomicyaml.Recover(dir, path, model.Default())
	if rerr != nil {
		return model.Config{}, nil, fmt.Errorf("%w (recovery: %v)", err, rerr)
	}
	cfg, err = model.LoadConfig(path)
	if err != nil {
		return model.Config{}, &rec, err
	}
	return cfg, &rec, nil
}
