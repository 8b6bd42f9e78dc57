package screen

import (
	"errors"
	"image"
	"io"
	"log/slog"
	"testing"

	"github.com/darkepoch/mubot/internal/vision"
)

type fakeFinder struct {
	visible  map[string]bool
	frameErr error
	probes   []string
}

func (f *fakeFinder) Frame() (image.Image, error) {
	if f.frameErr != nil {
		return nil, f.frameErr
	}
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
}

func (f *fakeFinder) FindOne(name string, _ ...vision.Option) (vision.MatchResult, bool) {
	f.probes = append(f.probes, name)
	return vision.MatchResult{}, f.visible[name]
}

func newClassifier(f *fakeFinder) *Classifier {
	return NewClassifier(f, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClassifyPriority(t *testing.T) {
	all := []string{LoginButton, PlayButton, HealthBar, Minimap, InventoryButton, CharacterButton}

	tests := []struct {
		name    string
		visible []string
		want    State
	}{
		{"nothing", nil, Unknown},
		{"login only", []string{LoginButton}, Login},
		{"login wins over everything", all, Login},
		{"menu wins over in-game", []string{PlayButton, HealthBar, Minimap}, MainMenu},
		{"health bar", []string{HealthBar}, InGame},
		{"minimap", []string{Minimap}, InGame},
		{"inventory button", []string{InventoryButton}, InGame},
		{"character button", []string{CharacterButton}, InGame},
		{"unrelated template", []string{"confirm_button"}, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFinder{visible: map[string]bool{}}
			for _, v := range tt.visible {
				f.visible[v] = true
			}
			if got := newClassifier(f).Classify(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClassifyIsTotalOverAllMatchSets(t *testing.T) {
	names := []string{LoginButton, PlayButton, HealthBar, Minimap, InventoryButton, CharacterButton}
	for mask := 0; mask < 1<<len(names); mask++ {
		f := &fakeFinder{visible: map[string]bool{}}
		for i, n := range names {
			if mask&(1<<i) != 0 {
				f.visible[n] = true
			}
		}

		want := Unknown
		switch {
		case f.visible[LoginButton]:
			want = Login
		case f.visible[PlayButton]:
			want = MainMenu
		case f.visible[HealthBar] || f.visible[Minimap] || f.visible[InventoryButton] || f.visible[CharacterButton]:
			want = InGame
		}

		if got := newClassifier(f).Classify(); got != want {
			t.Fatalf("mask %06b: expected %s, got %s", mask, want, got)
		}
	}
}

func TestClassifyStopsAtFirstHit(t *testing.T) {
	f := &fakeFinder{visible: map[string]bool{LoginButton: true, HealthBar: true}}
	newClassifier(f).Classify()
	if len(f.probes) != 1 || f.probes[0] != LoginButton {
		t.Errorf("expected a single login probe, got %v", f.probes)
	}
}

func TestClassifyWithoutFrame(t *testing.T) {
	f := &fakeFinder{frameErr: errors.New("no display"), visible: map[string]bool{LoginButton: true}}
	if got := newClassifier(f).Classify(); got != Unknown {
		t.Errorf("expected unknown without a frame, got %s", got)
	}
}

func TestStateString(t *testing.T) {
	if Login.String() != "login" || State(42).String() != "unknown" {
		t.Errorf("unexpected state names")
	}
}
