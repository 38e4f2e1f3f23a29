package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// IndexState tracks which issues have been embedded and the content hash
// each embedding was computed from.
type IndexState struct {
	Provider    string            `json:"provider"`
	Model       string            `json:"model"`
	IssueHashes map[string]string `json:"issue_hashes"`
	LastUpdated time.Time         `json:"last_updated"`
}

// LoadState reads index state from the given file. A missing file yields an
// empty state.
func LoadState(path string) (*IndexState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &IndexState{
				IssueHashes: make(map[string]string),
			}, nil
		}
		return nil, err
	}

	var state IndexState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.IssueHashes == nil {
		state.IssueHashes = make(map[string]string)
	}
	return &state, nil
}

// SaveState writes the index state to path.
func (s *IndexState) SaveState(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	s.LastUpdated = time.Now()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Retarget switches the state to a provider and model, forgetting every hash
// when either changed so all issues are embedded again.
func (s *IndexState) Retarget(provider, model string) {
	if s.Provider != provider || s.Model != model {
		s.IssueHashes = make(map[string]string)
	}
	s.Provider, s.Model = provider, model
}

// IsIssueChanged returns true if the issue's content hash differs from the
// stored hash.
func (s *IndexState) IsIssueChanged(key, contentHash string) bool {
	stored, ok := s.IssueHashes[key]
	if !ok {
		return true
	}
	return stored != contentHash
}

// ContentHash hashes the text an issue is embedded from.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
