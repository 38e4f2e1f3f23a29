package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestKeyStableAcrossEquivalentRequests(t *testing.T) {
	store, emb := displayCorpus(t)
	o := newTestOrchestrator(t, Deps{Issues: store, Embedder: emb})

	a, err := o.Key(Request{IssueKey: "PROJ-7", OS: "Linux", Component: "Display"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := o.Key(Request{IssueKey: " proj-7 ", OS: " linux", Component: "display ", Observer: func(Event) {}})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("equivalent requests produced different keys %s / %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256, got %q", a)
	}

	explicit, _ := o.Key(Request{IssueKey: "PROJ-7", OS: "linux", Component: "display", Limit: 5, MinLocalScore: 0.62})
	if explicit != a {
		t.Error("explicit defaults should match implied defaults")
	}
}

func TestKeyChangesWithInputs(t *testing.T) {
	store, emb := displayCorpus(t)
	o := newTestOrchestrator(t, Deps{Issues: store, Embedder: emb, External: &fakeExternal{}})

	base := Request{IssueKey: "PROJ-7"}
	baseKey, _ := o.Key(base)

	variants := map[string]Request{
		"issue":     {IssueKey: "PROJ-8"},
		"summary":   {IssueKey: "PROJ-7", Summary: "flicker"},
		"domain":    {IssueKey: "PROJ-7", Domain: "display"},
		"component": {IssueKey: "PROJ-7", Component: "Display"},
		"os":        {IssueKey: "PROJ-7", OS: "windows"},
		"logs":      {IssueKey: "PROJ-7", LogText: "ERROR boom"},
		"notes":     {IssueKey: "PROJ-7", Notes: "after update"},
		"limit":     {IssueKey: "PROJ-7", Limit: 9},
		"threshold": {IssueKey: "PROJ-7", MinLocalScore: 0.5},
		"external":  {IssueKey: "PROJ-7", External: true},
	}
	seen := map[string]string{baseKey: "base"}
	for name, req := range variants {
		k, err := o.Key(req)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if prev, dup := seen[k]; dup {
			t.Errorf("%s collides with %s", name, prev)
		}
		seen[k] = name
	}
}

func TestKeyIgnoresSaveRun(t *testing.T) {
	store, emb := displayCorpus(t)
	o := newTestOrchestrator(t, Deps{Issues: store, Embedder: emb})

	a, _ := o.Key(Request{IssueKey: "PROJ-7"})
	b, _ := o.Key(Request{IssueKey: "PROJ-7", SaveRun: true})
	if a != b {
		t.Error("persisting a run must not change its identity")
	}
}

func TestKeyExternalRequiresClient(t *testing.T) {
	store, emb := displayCorpus(t)
	o := newTestOrchestrator(t, Deps{Issues: store, Embedder: emb})

	a, _ := o.Key(Request{IssueKey: "PROJ-7"})
	b, _ := o.Key(Request{IssueKey: "PROJ-7", External: true})
	if a != b {
		t.Error("external toggle without a client should normalize to off")
	}
}

func TestKeyTracksLogFile(t *testing.T) {
	store, emb := displayCorpus(t)
	o := newTestOrchestrator(t, Deps{Issues: store, Embedder: emb})

	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("ERROR one\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	a, _ := o.Key(Request{IssueKey: "PROJ-7", LogPath: path})
	if err := os.WriteFile(path, []byte("ERROR one\nERROR two\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, _ := o.Key(Request{IssueKey: "PROJ-7", LogPath: path})
	if a == b {
		t.Error("changed log file should change the key")
	}
}

func TestKeyFingerprintsLongLogsByPrefix(t *testing.T) {
	store, emb := displayCorpus(t)
	o := newTestOrchestrator(t, Deps{Issues: store, Embedder: emb})

	prefix := strings.Repeat("x", fingerprintChars)
	a, _ := o.Key(Request{IssueKey: "PROJ-7", LogText: prefix + "tail one"})
	b, _ := o.Key(Request{IssueKey: "PROJ-7", LogText: prefix + "tail two"})
	if a != b {
		t.Error("only the first fingerprintChars of the logs should count")
	}
}

func TestCanonicalInputs(t *testing.T) {
	k := KeyInputs{Version: 1, IssueKey: "PROJ-7", Limit: 5, MinLocalScore: "0.6200"}
	got := string(k.Canonical())
	if !strings.HasPrefix(got, `{"v":1,"issue_key":"PROJ-7","limit":5,"min_local_score":"0.6200"`) {
		t.Errorf("unexpected canonical form %s", got)
	}
	if IdempotencyKey(k) != IdempotencyKey(k) {
		t.Error("key must be deterministic")
	}
}
