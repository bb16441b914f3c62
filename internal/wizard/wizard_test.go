package wizard

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tessro/markov/internal/core"
)

var songs = []core.SongID{
	"Blue Train/Moment's Notice.mp3",
	"Blue Train/Locomotion.mp3",
	"Giant Steps/Naima.flac",
	"Kind of Blue/So What.mp3",
}

func TestLibrarySearch(t *testing.T) {
	search := LibrarySearch(songs, 0)

	results, err := search("blue", ScopeAll)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[0].Title != "Moment's Notice" {
		t.Errorf("Title = %q, want %q", results[0].Title, "Moment's Notice")
	}
	if results[0].Subtitle != "Blue Train" {
		t.Errorf("Subtitle = %q, want %q", results[0].Subtitle, "Blue Train")
	}

	results, _ = search("blue", ScopeTitle)
	if len(results) != 0 {
		t.Errorf("title scope matched %d songs, want 0", len(results))
	}

	results, _ = search("kind blue", ScopeFolder)
	if len(results) != 1 || results[0].Song != "Kind of Blue/So What.mp3" {
		t.Errorf("folder scope = %v, want So What", results)
	}

	results, _ = search("   ", ScopeAll)
	if results != nil {
		t.Errorf("blank query returned %v, want nil", results)
	}
}

func TestLibrarySearchLimit(t *testing.T) {
	results, _ := LibrarySearch(songs, 2)("a", ScopeAll)
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
}

func TestSearchModelSelect(t *testing.T) {
	m := NewSearchModel(LibrarySearch(songs, 0))

	var model tea.Model = m
	model, _ = model.Update(searchResultsMsg{results: []SearchResult{
		{Song: songs[0], Title: "Moment's Notice"},
		{Song: songs[1], Title: "Locomotion"},
	}})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter with results should quit")
	}

	sel := model.(SearchModel).Selected()
	if sel == nil || sel.Song != songs[1] {
		t.Errorf("Selected() = %v, want %s", sel, songs[1])
	}
}

func TestSearchModelScopeCycles(t *testing.T) {
	var model tea.Model = NewSearchModel(LibrarySearch(songs, 0))
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if got := model.(SearchModel).scope; got != ScopeFolder {
		t.Errorf("scope after shift+tab = %d, want %d", got, ScopeFolder)
	}
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := model.(SearchModel).scope; got != ScopeAll {
		t.Errorf("scope after tab = %d, want %d", got, ScopeAll)
	}
}

func TestPickerStartsOnActive(t *testing.T) {
	options := []Option{{Value: "markov"}, {Value: "shuffle", Active: true}, {Value: "random"}}

	var model tea.Model = NewPickerModel("Mode", options)
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})

	sel := model.(PickerModel).Selected()
	if sel == nil || sel.Value != "random" {
		t.Errorf("Selected() = %v, want random", sel)
	}
}

func TestPickerEscSelectsNothing(t *testing.T) {
	var model tea.Model = NewPickerModel("Mode", []Option{{Value: "markov"}})
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Error("esc should quit")
	}
	if model.(PickerModel).Selected() != nil {
		t.Error("esc should not select")
	}
}

func TestActiveOption(t *testing.T) {
	if ActiveOption([]Option{{Value: "a"}, {Value: "b"}}) != nil {
		t.Error("no active option should return nil")
	}
	if ActiveOption([]Option{{Value: "a", Active: true}, {Value: "b", Active: true}}) != nil {
		t.Error("two active options should return nil")
	}
	if got := ActiveOption([]Option{{Value: "a"}, {Value: "b", Active: true}}); got == nil || got.Value != "b" {
		t.Errorf("ActiveOption = %v, want b", got)
	}
}

func TestNeedsSong(t *testing.T) {
	if !NeedsSong(nil) {
		t.Error("NeedsSong(nil) = false, want true")
	}
	if NeedsSong([]string{"a.mp3"}) {
		t.Error("NeedsSong([a.mp3]) = true, want false")
	}
}
