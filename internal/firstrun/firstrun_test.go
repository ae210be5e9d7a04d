package firstrun_test

import (
	"bytes"
	"testing"

	"gtd/internal/firstrun"
	"gtd/internal/xmlfile"
)

func TestGenerateDecodes(t *testing.T) {
	var buf bytes.Buffer
	if err := firstrun.Generate(&buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	got, err := xmlfile.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	roots := got.Tasks.Roots()
	if len(roots) != 1 || len(roots[0].Children()) != 4 {
		t.Fatalf("unexpected tree: %v", roots)
	}
	for _, task := range got.Tasks.All() {
		if !task.HasTag(firstrun.TutorialTag) {
			t.Errorf("%s is not tagged", task.Title())
		}
	}
	if _, err := got.Searches.Find("Tutorial"); err != nil {
		t.Errorf("saved search missing: %v", err)
	}
}
