package logsignals

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func extract(t *testing.T, text string) Result {
	t.Helper()
	res, err := NewExtractor().Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return res
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}

func TestExtractEmpty(t *testing.T) {
	res := extract(t, "")
	if len(res.Signatures) != 0 || res.Fingerprint != "" || res.QueryText != "" {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestExtractTraceback(t *testing.T) {
	logs := `2026-01-01 10:00:00 INFO starting
Traceback (most recent call last):
  File "app.py", line 10, in main
    run()
  File "app.py", line 5, in run
    raise ValueError("bad value")
ValueError: bad value
`
	res := extract(t, logs)
	if len(res.Signatures) == 0 || res.Signatures[0] != "ValueError: bad value" {
		t.Fatalf("expected exception first, got %v", res.Signatures)
	}
	var joined string
	for _, s := range res.Signatures {
		if strings.HasPrefix(s, "Traceback (most recent call last):") {
			joined = s
		}
	}
	if joined == "" {
		t.Fatalf("expected a traceback signature in %v", res.Signatures)
	}
	if !strings.Contains(joined, " | ") || !strings.Contains(joined, `File "app.py", line 5, in run`) {
		t.Errorf("unexpected traceback signature %q", joined)
	}
	if contains(res.Signatures, "starting") || contains(res.Signatures, "INFO starting") {
		t.Error("info line should not be a signature")
	}
}

func TestExtractStructuredFirst(t *testing.T) {
	logs := strings.Join([]string{
		"ERROR: connection refused to host",
		"ERROR: connection refused to host",
		"ERROR: connection refused to host",
		"request failed with status 503",
		"OSError: [WinError 10061] No connection could be made",
	}, "\n")

	res := extract(t, logs)
	want := []string{
		"OSError: [WinError 10061] No connection could be made",
		"WinError 10061",
		"HTTP 503",
		"connection refused to host",
		"request failed with status 503",
	}
	if len(res.Signatures) < len(want) {
		t.Fatalf("signatures = %v", res.Signatures)
	}
	for i, w := range want {
		if res.Signatures[i] != w {
			t.Errorf("signature[%d] = %q, want %q", i, res.Signatures[i], w)
		}
	}
	if res.Lines != 5 {
		t.Errorf("Lines = %d, want 5", res.Lines)
	}
}

func TestExtractCausedByAndErrno(t *testing.T) {
	logs := "Caused by: java.io.IOException: disk full\nwrite failed errno=28\n"
	res := extract(t, logs)
	for _, want := range []string{"Caused by: java.io.IOException: disk full", "errno 28", "write failed errno=28"} {
		if !contains(res.Signatures, want) {
			t.Errorf("missing %q in %v", want, res.Signatures)
		}
	}
	seen := map[string]bool{}
	for _, s := range res.Signatures {
		if seen[s] {
			t.Errorf("duplicate signature %q", s)
		}
		seen[s] = true
	}
}

func TestExtractHTTPRequiresContext(t *testing.T) {
	res := extract(t, "fatal: 404 widgets remaining\n")
	for _, s := range res.Signatures {
		if strings.HasPrefix(s, "HTTP ") {
			t.Errorf("unexpected HTTP signature %q", s)
		}
	}
}

func TestExtractCapsSignatures(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "operation %d failed\n", i)
	}
	res := extract(t, b.String())
	if len(res.Signatures) != DefaultMaxSignals {
		t.Errorf("len = %d, want %d", len(res.Signatures), DefaultMaxSignals)
	}
}

func TestExtractCapsQueryText(t *testing.T) {
	e := &Extractor{MaxSignals: 30, MaxQueryChars: 50}
	res, err := e.Extract(context.Background(), strings.Repeat("fatal problem in subsystem alpha\n", 3)+"another error here\n")
	if err != nil {
		t.Fatal(err)
	}
	if n := utf8.RuneCountInString(res.QueryText); n != 50 {
		t.Errorf("query length = %d, want 50", n)
	}
	if !strings.HasSuffix(res.QueryText, "...") {
		t.Errorf("expected ellipsis, got %q", res.QueryText)
	}
}

func TestExtractFingerprintDeterministic(t *testing.T) {
	logs := "ERROR: device timeout on port 3\n"
	a := extract(t, logs)
	b := extract(t, logs)
	if a.Fingerprint != b.Fingerprint || len(a.Fingerprint) != 16 {
		t.Errorf("fingerprints %q vs %q", a.Fingerprint, b.Fingerprint)
	}
	if a.Fingerprint != Fingerprint(a.QueryText) {
		t.Error("fingerprint should hash the query text")
	}
	c := extract(t, "ERROR: device timeout on port 4\n")
	if c.Fingerprint == a.Fingerprint {
		t.Error("different logs should fingerprint differently")
	}
}

func TestExtractCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewExtractor().Extract(ctx, "error\n"); err == nil {
		t.Error("expected context error")
	}
}

func TestCanonLongLine(t *testing.T) {
	got := canon("[12:00:01] " + strings.Repeat("x", 500))
	if utf8.RuneCountInString(got) != maxLineChars || !strings.HasSuffix(got, "...") {
		t.Errorf("canon length = %d", utf8.RuneCountInString(got))
	}
	if strings.HasPrefix(got, "[") {
		t.Errorf("timestamp not stripped: %q", got[:12])
	}
}

func TestMostCommonStableTies(t *testing.T) {
	got := mostCommon([]string{"b", "a", "c", "a", "b", "d"}, 3)
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mostCommon = %v, want %v", got, want)
		}
	}
}

func TestReadTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	var b strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	text, truncated, err := ReadTail(path, 0, 3)
	if err != nil {
		t.Fatalf("ReadTail: %v", err)
	}
	if truncated {
		t.Error("small file should not be truncated")
	}
	if text != "line 8\nline 9\nline 10\n" {
		t.Errorf("tail = %q", text)
	}

	text, truncated, err = ReadTail(path, 16, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !truncated {
		t.Error("expected truncation")
	}
	if !strings.HasSuffix(text, "line 10\n") || strings.Contains(text, "line 1\n") {
		t.Errorf("unexpected tail %q", text)
	}
}

func TestReadTailMissing(t *testing.T) {
	if _, _, err := ReadTail(filepath.Join(t.TempDir(), "missing.log"), 0, 0); err == nil {
		t.Error("expected error for missing file")
	}
}
