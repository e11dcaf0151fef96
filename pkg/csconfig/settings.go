// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package csconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"github.com/wavetermdev/compsync/pkg/layoutmodel"
	"github.com/wavetermdev/compsync/pkg/reconcile"
	"github.com/wavetermdev/compsync/pkg/util/logutil"
	"github.com/wavetermdev/compsync/pkg/util/utilfn"
)

const (
	EnvDebounceMs     = "COMPSYNC_DEBOUNCE_MS"
	EnvDebug          = "COMPSYNC_DEBUG"
	EnvStrictSurvivor = "COMPSYNC_STRICT_SURVIVOR"
	EnvCheckIntegrity = "COMPSYNC_CHECK_INTEGRITY"
	EnvInspectAddr    = "COMPSYNC_INSPECT_ADDR"
)

const (
	DefaultDebounceMs  = 10
	DefaultInspectAddr = "127.0.0.1:7341"
)

type SettingsType struct {
	DebounceMs           int    `json:"debouncems,omitempty" jsonschema:"minimum=0"`
	StrictSingleSurvivor bool   `json:"strictsinglesurvivor,omitempty"`
	CheckIntegrity       bool   `json:"checkintegrity,omitempty"`
	Debug                bool   `json:"debug,omitempty"`
	InspectAddr          string `json:"inspectaddr,omitempty"`
}

func DefaultSettings() SettingsType {
	return SettingsType{
		DebounceMs:  DefaultDebounceMs,
		InspectAddr: DefaultInspectAddr,
	}
}

// ReadSettings loads the settings file (missing is fine) on top of the defaults,
// then applies environment overrides. An empty fileName skips the file.
func ReadSettings(fileName string) (SettingsType, error) {
	return readSettings(fileName, os.Getenv)
}

// ReadSettingsWithEnvFile is ReadSettings with overrides also taken from a dotenv file.
// Variables set in the process environment win over the file.
func ReadSettingsWithEnvFile(fileName string, envFileName string) (SettingsType, error) {
	if envFileName == "" {
		return ReadSettings(fileName)
	}
	envVals, err := godotenv.Read(envFileName)
	if err != nil {
		return DefaultSettings(), fmt.Errorf("error reading env file %s: %w", envFileName, err)
	}
	return readSettings(fileName, func(name string) string {
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return envVals[name]
	})
}

func readSettings(fileName string, getenv func(string) string) (SettingsType, error) {
	settings := DefaultSettings()
	if fileName != "" {
		m, err := readSettingsMap(fileName)
		if err != nil {
			return settings, fmt.Errorf("error reading settings %s: %w", fileName, err)
		}
		if err := DecodeSettings(m, &settings); err != nil {
			return settings, fmt.Errorf("error decoding settings %s: %w", fileName, err)
		}
	}
	if err := ApplyEnv(&settings, getenv); err != nil {
		return settings, err
	}
	return settings, settings.Validate()
}

// readSettingsMap reads json settings, or ini (top-level keys only) for .ini files
func readSettingsMap(fileName string) (map[string]any, error) {
	if !strings.EqualFold(filepath.Ext(fileName), ".ini") {
		return utilfn.ReadJsonMap(fileName)
	}
	if _, err := os.Stat(fileName); os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	f, err := ini.Load(fileName)
	if err != nil {
		return nil, err
	}
	rtn := make(map[string]any)
	for key, val := range f.Section("").KeysHash() {
		rtn[key] = val
	}
	return rtn, nil
}

func DecodeSettings(m map[string]any, settings *SettingsType) error {
	return utilfn.DoMapStructure(settings, m)
}

func ApplyEnv(settings *SettingsType, getenv func(string) string) error {
	if val := getenv(EnvDebounceMs); val != "" {
		ms, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvDebounceMs, val, err)
		}
		settings.DebounceMs = ms
	}
	boolVars := []struct {
		name string
		dest *bool
	}{
		{EnvDebug, &settings.Debug},
		{EnvStrictSurvivor, &settings.StrictSingleSurvivor},
		{EnvCheckIntegrity, &settings.CheckIntegrity},
	}
	for _, bv := range boolVars {
		val := strings.TrimSpace(getenv(bv.name))
		if val == "" {
			continue
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", bv.name, val, err)
		}
		*bv.dest = b
	}
	if val := getenv(EnvInspectAddr); val != "" {
		settings.InspectAddr = val
	}
	return nil
}

func (s SettingsType) Validate() error {
	if s.DebounceMs < 0 {
		return fmt.Errorf("debouncems must be >= 0, got %d", s.DebounceMs)
	}
	return nil
}

func (s SettingsType) Debounce() time.Duration {
	return time.Duration(s.DebounceMs) * time.Millisecond
}

func (s SettingsType) ModelConfig() layoutmodel.Config {
	return layoutmodel.Config{
		Delay:          s.Debounce(),
		Reconcile:      reconcile.Options{StrictSingleSurvivor: s.StrictSingleSurvivor},
		CheckIntegrity: s.CheckIntegrity,
	}
}

// Apply sets the process-wide pieces of the settings (debug logging)
func (s SettingsType) Apply() {
	logutil.SetDebug(s.Debug)
}
