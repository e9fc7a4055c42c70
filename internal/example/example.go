// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

// Package example loads demo example sets from disk. Each set is a
// directory named example_<N>_<slug> holding the per-run system
// instructions, user input, and model configuration.
package example

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// Required files in every example directory.
const (
	systemInstructionsFile = "system_instructions.txt"
	userInputFile          = "user_input.txt"
	configurationFile      = "configuration.json"

	// lookupTableFile optionally overrides the built-in lookup tool table.
	lookupTableFile = "lookup_table.json"
)

// dirPattern matches example directory names and captures the number.
var dirPattern = regexp.MustCompile(`^example_(\d+)_.+$`)

// Config is the per-example model configuration from configuration.json.
// Recognized options: model_id, temperature, max_tokens, tools.
type Config struct {
	ModelID     string   `mapstructure:"model_id"`
	Temperature *float32 `mapstructure:"temperature"`
	MaxTokens   int      `mapstructure:"max_tokens"`

	// Tools names the registered tools to expose for this example.
	// Absent means all registered tools.
	Tools []string `mapstructure:"tools"`
}

// Set is one fully loaded example.
type Set struct {
	Name               string
	Dir                string
	SystemInstructions string
	UserInput          string
	Config             Config

	// LookupTable is non-nil when the example ships its own table for
	// the built-in lookup tool.
	LookupTable map[string]string
}

// Entry is one listing row.
type Entry struct {
	Number int
	Name   string
}

// List returns the example sets under baseDir, sorted by number.
func List(baseDir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeExampleNotFound, "reading examples directory %s", baseDir)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		m := dirPattern.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		number, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Number: number, Name: de.Name()})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Number != entries[j].Number {
			return entries[i].Number < entries[j].Number
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// Find resolves an example argument to a directory path. A numeric arg
// matches example_<N>_* (exactly one match required); anything else is
// taken as a directory name under baseDir.
func Find(baseDir, arg string) (string, error) {
	if _, err := strconv.Atoi(arg); err == nil {
		matches, err := filepath.Glob(filepath.Join(baseDir, "example_"+arg+"_*"))
		if err != nil {
			return "", pgerr.Wrapf(err, pgerr.CodeExampleNotFound, "globbing for example %s", arg)
		}

		var dirs []string
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.IsDir() {
				dirs = append(dirs, m)
			}
		}

		switch len(dirs) {
		case 0:
			return "", pgerr.New(
				pgerr.CodeExampleNotFound,
				"no example directory matches example_"+arg+"_*",
				pgerr.FieldExample(arg),
			)
		case 1:
			return dirs[0], nil
		default:
			names := make([]string, len(dirs))
			for i, d := range dirs {
				names[i] = filepath.Base(d)
			}
			return "", pgerr.New(
				pgerr.CodeExampleAmbiguous,
				"multiple example directories match example_"+arg+"_*: "+strings.Join(names, ", "),
				pgerr.FieldExample(arg),
			)
		}
	}

	dir := filepath.Join(baseDir, arg)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", pgerr.New(
			pgerr.CodeExampleNotFound,
			"example directory not found: "+arg,
			pgerr.FieldExample(arg),
		)
	}
	return dir, nil
}

// Load reads an example set from dir. All required files must exist;
// missing ones are reported together.
func Load(dir string) (*Set, error) {
	var missing []string
	for _, name := range []string{systemInstructionsFile, userInputFile, configurationFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, pgerr.New(
			pgerr.CodeExampleFilesMissing,
			"missing required files in "+filepath.Base(dir)+": "+strings.Join(missing, ", "),
			pgerr.FieldExample(filepath.Base(dir)),
		)
	}

	systemInstructions, err := os.ReadFile(filepath.Join(dir, systemInstructionsFile))
	if err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeExampleFilesMissing, "reading %s", systemInstructionsFile)
	}
	userInput, err := os.ReadFile(filepath.Join(dir, userInputFile))
	if err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeExampleFilesMissing, "reading %s", userInputFile)
	}

	cfg, err := loadConfig(filepath.Join(dir, configurationFile))
	if err != nil {
		return nil, err
	}

	set := &Set{
		Name:               filepath.Base(dir),
		Dir:                dir,
		SystemInstructions: strings.TrimSpace(string(systemInstructions)),
		UserInput:          strings.TrimSpace(string(userInput)),
		Config:             cfg,
	}

	table, err := loadLookupTable(filepath.Join(dir, lookupTableFile))
	if err != nil {
		return nil, err
	}
	set.LookupTable = table

	return set, nil
}

// loadConfig reads configuration.json through viper so key handling
// matches the rest of the configuration surface.
func loadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, pgerr.Wrapf(err, pgerr.CodeExampleConfigInvalid, "reading %s", filepath.Base(path))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, pgerr.Wrapf(err, pgerr.CodeExampleConfigInvalid, "unmarshalling %s", filepath.Base(path))
	}

	if cfg.MaxTokens < 0 {
		return Config{}, pgerr.Errorf(pgerr.CodeExampleConfigInvalid, "max_tokens must be non-negative, got %d", cfg.MaxTokens)
	}

	return cfg, nil
}

// loadLookupTable reads the optional per-example lookup table. A missing
// file is fine; a present-but-unreadable one is not. Decoded with
// encoding/json rather than viper: lookup keys are case-sensitive data,
// and viper lowercases keys.
func loadLookupTable(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pgerr.Wrapf(err, pgerr.CodeExampleConfigInvalid, "reading %s", filepath.Base(path))
	}

	var table map[string]string
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeExampleConfigInvalid, "parsing %s", filepath.Base(path))
	}
	return table, nil
}
