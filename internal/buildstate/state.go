package buildstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const stateVersion = 1

// State is the on-disk record of the previous run. An unreadable or
// version-mismatched file loads as an empty state, which downstream code
// treats as a first run.
type State struct {
	Version             int               `json:"version"`
	Fingerprints        map[string]string `json:"fingerprints"`
	StagedTemplatePaths []string          `json:"staged_template_paths"`
}

func emptyState() *State {
	return &State{Version: stateVersion, Fingerprints: make(map[string]string)}
}

// LoadState reads the build state file. A missing file is a normal first run
// and returns an empty state with ok=false. A corrupt or incompatible file
// also returns an empty state, with the parse problem as a non-fatal error so
// the caller can log it.
func LoadState(path string) (*State, bool, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return emptyState(), false, nil
		}
		return emptyState(), false, fmt.Errorf("read build state: %w", err)
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return emptyState(), false, fmt.Errorf("parse build state: %w", err)
	}
	if state.Version != stateVersion {
		return emptyState(), false, fmt.Errorf("build state version %d is not %d", state.Version, stateVersion)
	}
	if state.Fingerprints == nil {
		state.Fingerprints = make(map[string]string)
	}
	return &state, true, nil
}

// SaveState writes the state atomically next to its final location.
func SaveState(path string, state *State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize build state: %w", err)
	}
	temp := path + ".tmp"
	if err := os.WriteFile(temp, payload, 0o644); err != nil {
		return fmt.Errorf("write build state: %w", err)
	}
	if err := os.Rename(temp, path); err != nil {
		return fmt.Errorf("replace build state: %w", err)
	}
	return nil
}
