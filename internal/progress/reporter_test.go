package progress

import (
	"bytes"
	"testing"
)

func TestCIReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{Task: "Embedding issues", Out: &buf}
	r.Start(2)
	r.Update(1, "PROJ-1")
	r.Update(2, "PROJ-2")
	r.Finish()

	want := "Embedding issues: 2 issues\n[1/2] PROJ-1\n[2/2] PROJ-2\nEmbedding issues: done\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestNewReporterInCI(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter("x").(*CIReporter); !ok {
		t.Error("expected CI reporter when CI is set")
	}
}
