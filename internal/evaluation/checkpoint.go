package evaluation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint is the on-disk resume state of an interrupted run.
type Checkpoint struct {
	UpdatedAt time.Time             `json:"updated_at"`
	Results   map[string]CaseResult `json:"results"`
}

// LoadCheckpoint reads resume state from path. A missing file is an empty
// checkpoint, not an error.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	cp := &Checkpoint{Results: make(map[string]CaseResult)}
	if path == "" {
		return cp, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cp, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, err
	}
	if cp.Results == nil {
		cp.Results = make(map[string]CaseResult)
	}
	return cp, nil
}

// Save writes the checkpoint atomically: full write to a temp file, then
// rename, so a crash mid-save never corrupts existing resume state.
func (cp *Checkpoint) Save(path string) error {
	if path == "" {
		return nil
	}
	cp.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
