// Package logsignals reduces raw logs to a short list of high-signal
// signatures used as similarity query text and prompt context.
package logsignals

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
)

const (
	DefaultMaxSignals    = 30
	DefaultMaxQueryChars = 3500
	DefaultMaxBytes      = 2_000_000
	DefaultTailLines     = 4000

	maxLineChars       = 400
	maxExceptions      = 10
	maxWinErrors       = 5
	maxHTTPCodes       = 5
	maxTracebackLines  = 12
	tracebackSigFrames = 6
)

var (
	tsPrefixRe      = regexp.MustCompile(`^(?:\[?\d{4}-\d{2}-\d{2}(?:[ T]\d{2}:\d{2}:\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:\d{2})?\]?|\[?\d{2}:\d{2}:\d{2}(?:\.\d+)?\]?)\s*`)
	levelPrefixRe   = regexp.MustCompile(`(?i)^(?:\[\w+\]|\w+)\s*[:\-]\s*`)
	tracebackRe     = regexp.MustCompile(`^Traceback \(most recent call last\):\s*$`)
	pyFileLineRe    = regexp.MustCompile(`^\s*File ".*?", line \d+, in .+\s*$`)
	exceptionLineRe = regexp.MustCompile(`^\s*([A-Za-z_]\w*(?:Error|Exception))(?::\s*(.*))?\s*$`)
	causedByRe      = regexp.MustCompile(`^\s*Caused by:\s+(.+)\s*$`)
	winErrorRe      = regexp.MustCompile(`(?i)\bWinError\s*(\d+)\b`)
	errnoRe         = regexp.MustCompile(`(?i)\berrno\s*[:=]?\s*(\d+)\b`)
	httpCodeRe      = regexp.MustCompile(`\b(4\d\d|5\d\d)\b`)
	spaceRe         = regexp.MustCompile(`\s+`)

	errorWords = []string{"error", "exception", "traceback", "fatal", "failed", "refused", "timeout"}
	httpWords  = []string{"http", "status", "response"}
)

// Result is the extracted signal set.
type Result struct {
	Signatures  []string `json:"signatures"`
	Fingerprint string   `json:"fingerprint"`
	QueryText   string   `json:"query_text"`
	Lines       int      `json:"lines"`
	Candidates  int      `json:"candidates"`
}

// Extractor turns log text into signatures.
type Extractor struct {
	MaxSignals    int
	MaxQueryChars int
}

// NewExtractor returns an extractor with the default caps.
func NewExtractor() *Extractor {
	return &Extractor{MaxSignals: DefaultMaxSignals, MaxQueryChars: DefaultMaxQueryChars}
}

func canon(line string) string {
	s := strings.TrimSpace(line)
	s = tsPrefixRe.ReplaceAllString(s, "")
	s = levelPrefixRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if r := []rune(s); len(r) > maxLineChars {
		s = string(r[:maxLineChars-3]) + "..."
	}
	return s
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func exceptionSig(m []string) string {
	msg := strings.TrimSpace(m[2])
	if msg == "" {
		return m[1]
	}
	return m[1] + ": " + msg
}

// Extract scans text line by line. Structured signals (exceptions, Windows
// error codes, HTTP codes) come first, then the most frequent error-looking
// lines. The fingerprint is the first 16 hex chars of sha256(QueryText).
func (e *Extractor) Extract(ctx context.Context, text string) (Result, error) {
	maxSignals := e.MaxSignals
	if maxSignals <= 0 {
		maxSignals = DefaultMaxSignals
	}
	maxQuery := e.MaxQueryChars
	if maxQuery <= 0 {
		maxQuery = DefaultMaxQueryChars
	}

	lines := splitLines(text)
	if len(lines) == 0 {
		return Result{Signatures: []string{}}, nil
	}

	var (
		candidates, exceptions, winErrors, httpCodes []string
		inTraceback                                  bool
		traceback                                    []string
	)

	for i, line := range lines {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, fmt.Errorf("extracting log signals: %w", err)
			}
		}
		s := canon(line)
		if s == "" {
			continue
		}

		if tracebackRe.MatchString(line) {
			inTraceback = true
			traceback = []string{"Traceback (most recent call last):"}
			continue
		}

		if inTraceback {
			if pyFileLineRe.MatchString(line) {
				traceback = append(traceback, s)
				continue
			}
			if m := exceptionLineRe.FindStringSubmatch(line); m != nil {
				exceptions = append(exceptions, exceptionSig(m))
				traceback = append(traceback, s)
				inTraceback = false
				from := max(0, len(traceback)-tracebackSigFrames)
				candidates = append(candidates, strings.Join(traceback[from:], " | "))
				continue
			}
			if len(traceback) < maxTracebackLines {
				traceback = append(traceback, s)
			}
			continue
		}

		if m := causedByRe.FindStringSubmatch(line); m != nil {
			candidates = append(candidates, "Caused by: "+canon(m[1]))
		}
		if m := winErrorRe.FindStringSubmatch(line); m != nil {
			winErrors = append(winErrors, "WinError "+m[1])
		}
		if m := errnoRe.FindStringSubmatch(line); m != nil {
			candidates = append(candidates, "errno "+m[1])
		}

		lower := strings.ToLower(s)
		if containsAny(lower, errorWords) {
			candidates = append(candidates, s)
		}
		if containsAny(lower, httpWords) {
			if m := httpCodeRe.FindStringSubmatch(s); m != nil {
				httpCodes = append(httpCodes, m[1])
			}
		}
		if m := exceptionLineRe.FindStringSubmatch(line); m != nil {
			exceptions = append(exceptions, exceptionSig(m))
		}
	}

	top := mostCommon(candidates, max(10, maxSignals))

	var structured []string
	structured = append(structured, uniq(exceptions, maxExceptions)...)
	structured = append(structured, uniq(winErrors, maxWinErrors)...)
	codes := make([]string, len(httpCodes))
	for i, c := range httpCodes {
		codes[i] = "HTTP " + c
	}
	structured = append(structured, uniq(codes, maxHTTPCodes)...)

	merged := make([]string, 0, maxSignals)
	seen := make(map[string]struct{})
	for _, s := range append(structured, top...) {
		if len(merged) >= maxSignals {
			break
		}
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		merged = append(merged, s)
	}

	query := strings.TrimSpace(strings.Join(merged, "\n"))
	if r := []rune(query); len(r) > maxQuery {
		query = string(r[:maxQuery-3]) + "..."
	}

	return Result{
		Signatures:  merged,
		Fingerprint: Fingerprint(query),
		QueryText:   query,
		Lines:       len(lines),
		Candidates:  len(candidates),
	}, nil
}

// Fingerprint returns the first 16 hex chars of sha256(text), or "" for
// empty text.
func Fingerprint(text string) string {
	if text == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}

func uniq(xs []string, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, x := range xs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// mostCommon returns up to n distinct values by descending frequency, ties
// in first-seen order.
func mostCommon(xs []string, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, x := range xs {
		if x == "" {
			continue
		}
		if counts[x] == 0 {
			order = append(order, x)
		}
		counts[x]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// ReadTail reads at most maxBytes from the end of a log file and returns the
// last tailLines lines. truncated reports whether the file was cut.
func ReadTail(path string, maxBytes int64, tailLines int) (text string, truncated bool, err error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if tailLines <= 0 {
		tailLines = DefaultTailLines
	}

	f, err := os.Open(path)
	if err != nil {
		return "", false, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", false, fmt.Errorf("stat log file: %w", err)
	}
	size := info.Size()
	if size > maxBytes {
		if _, err := f.Seek(size-maxBytes, io.SeekStart); err != nil {
			return "", false, fmt.Errorf("seeking log file: %w", err)
		}
		truncated = true
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return "", false, fmt.Errorf("reading log file: %w", err)
	}
	text = strings.ToValidUTF8(string(data), "�")

	lines := splitLines(text)
	if len(lines) > tailLines {
		lines = lines[len(lines)-tailLines:]
	}
	if len(lines) == 0 {
		return "", truncated, nil
	}
	return strings.TrimRight(strings.Join(lines, "\n"), " \t\n") + "\n", truncated, nil
}
