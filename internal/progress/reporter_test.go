package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestCIReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{Label: "Importing knowledge", Out: &buf}
	r.Start(2)
	r.Update(1, "What are your hours?")
	r.Update(2, "Where are you located?")
	r.Finish()

	out := buf.String()
	for _, want := range []string{"Importing knowledge: 2 items", "[1/2] What are your hours?", "[2/2] Where are you located?", "Importing knowledge: done"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestNewReporterInCI(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter("x").(*CIReporter); !ok {
		t.Error("expected CIReporter when CI is set")
	}
}
