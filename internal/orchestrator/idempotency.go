package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/logsignals"
)

// fingerprintChars bounds how much of the log text and notes feed the key.
const fingerprintChars = 20000

// KeyInputs is the canonical request identity. Field order is fixed, so its
// JSON encoding is canonical. Request time is deliberately absent.
type KeyInputs struct {
	Version             int    `json:"v"`
	IssueKey            string `json:"issue_key"`
	Summary             string `json:"summary,omitempty"`
	Domain              string `json:"domain,omitempty"`
	Component           string `json:"component,omitempty"`
	OS                  string `json:"os,omitempty"`
	LogsFingerprint     string `json:"logs_fp,omitempty"`
	LogFile             string `json:"log_file,omitempty"`
	NotesFingerprint    string `json:"notes_fp,omitempty"`
	Limit               int    `json:"limit"`
	MinLocalScore       string `json:"min_local_score"`
	ClassifierThreshold string `json:"classifier_threshold"`
	PrefilterMin        int    `json:"prefilter_min"`
	External            bool   `json:"external"`
	ExternalMaxResults  int    `json:"external_max_results,omitempty"`
}

// Canonical returns the JSON encoding the key is hashed from.
func (k KeyInputs) Canonical() []byte {
	b, _ := json.Marshal(k)
	return b
}

// IdempotencyKey returns the hex SHA-256 of the canonical inputs.
func IdempotencyKey(k KeyInputs) string {
	sum := sha256.Sum256(k.Canonical())
	return hex.EncodeToString(sum[:])
}

// keyInputs builds the identity of a normalized request.
func (o *Orchestrator) keyInputs(req Request) KeyInputs {
	k := KeyInputs{
		Version:             1,
		IssueKey:            req.IssueKey,
		Summary:             strings.TrimSpace(req.Summary),
		Domain:              lowerTrim(req.Domain),
		Component:           lowerTrim(req.Component),
		OS:                  lowerTrim(req.OS),
		LogsFingerprint:     logsignals.Fingerprint(head(req.LogText, fingerprintChars)),
		NotesFingerprint:    logsignals.Fingerprint(head(strings.TrimSpace(req.Notes), fingerprintChars)),
		Limit:               req.Limit,
		MinLocalScore:       fmt.Sprintf("%.4f", req.MinLocalScore),
		ClassifierThreshold: fmt.Sprintf("%.4f", o.classifier.Threshold),
		PrefilterMin:        o.classifier.MinCandidates,
		External:            req.External,
	}
	if req.External {
		k.ExternalMaxResults = o.cfg.ExternalMaxResults
	}
	if req.LogPath != "" {
		k.LogFile = req.LogPath
		if st, err := os.Stat(req.LogPath); err == nil {
			k.LogFile = fmt.Sprintf("%s|%d|%d", req.LogPath, st.Size(), st.ModTime().UnixNano())
		}
	}
	return k
}

func lowerTrim(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// head returns at most n runes of s.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
