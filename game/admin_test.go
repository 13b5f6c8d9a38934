package game

import (
	"context"
	"errors"
	"testing"

	"saythat-server/gameerrors"
)

func TestAddNounLowerCases(t *testing.T) {
	f := newFixture(t)
	noun, err := f.engine.AddNoun(context.Background(), "s1", " Cheese ")
	if err != nil {
		t.Fatalf("AddNoun: %v", err)
	}
	if noun != "cheese" {
		t.Errorf("noun = %q, want cheese", noun)
	}
	var english string
	if !f.get(t, DictionaryPath("s1", "en-US", "cheese"), &english) || english != "cheese" {
		t.Errorf("dictionary entry = %q", english)
	}
	if _, err := f.engine.AddNoun(context.Background(), "s1", "  "); !errors.Is(err, ErrEmptyNoun) {
		t.Errorf("expected ErrEmptyNoun, got %v", err)
	}
}

func TestSubmitGuessNeedsScene(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.SubmitGuess(context.Background(), "u1", "kaas"); !errors.Is(err, gameerrors.ErrNoCurrentScene) {
		t.Fatalf("expected ErrNoCurrentScene, got %v", err)
	}
	if err := f.engine.SetCurrentScene(context.Background(), "s1"); err != nil {
		t.Fatalf("SetCurrentScene: %v", err)
	}
	scene, err := f.engine.SubmitGuess(context.Background(), "u1", "Kaas")
	if err != nil || scene != "s1" {
		t.Fatalf("SubmitGuess = %q, %v", scene, err)
	}
	var state string
	if !f.get(t, GuessPath("u1", "s1", "kaas"), &state) || state != GuessPending {
		t.Errorf("state = %q, want pending", state)
	}
}
