package searches_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"gtd/internal/searches"
	"gtd/internal/utils"
)

func TestNewAndFind(t *testing.T) {
	s := searches.NewStore()

	urgent, err := s.New("Urgent", "@urgent & !done", uuid.Nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	nested, err := s.New("Urgent at work", "@urgent & @work", urgent.ID())
	if err != nil {
		t.Fatalf("New nested: %v", err)
	}

	if nested.Parent() != urgent {
		t.Error("nested search should point at its parent")
	}
	got, err := s.Find("Urgent")
	if err != nil || got != urgent {
		t.Errorf("Find = %v, %v", got, err)
	}
	if again, _ := s.New("Urgent", "ignored", uuid.Nil); again != urgent || again.Query != "@urgent & !done" {
		t.Error("New with an existing name should return the stored search unchanged")
	}
	if _, err := s.Find("missing"); !errors.Is(err, utils.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if s.Count() != 2 {
		t.Errorf("Count = %d, want 2", s.Count())
	}
}
