package game

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"saythat-server/lang"
)

// ErrEmptyNoun is returned when a guess or noun has no text.
var ErrEmptyNoun = errors.New("noun is empty")

// SetCurrentScene makes scene the one being played.
func (e *Engine) SetCurrentScene(ctx context.Context, scene string) error {
	if strings.TrimSpace(scene) == "" {
		return errors.New("scene is empty")
	}
	return e.store.Set(context.WithoutCancel(ctx), CurrentScenePath, scene)
}

// AddNoun registers an English noun for scene. The translation fan-out runs
// when the resulting dictionary write is observed.
func (e *Engine) AddNoun(ctx context.Context, scene, noun string) (string, error) {
	noun = lower(strings.TrimSpace(noun))
	if noun == "" {
		return "", ErrEmptyNoun
	}
	if err := e.store.Set(context.WithoutCancel(ctx), DictionaryPath(scene, lang.Source, noun), noun); err != nil {
		return "", fmt.Errorf("add noun %q: %w", noun, err)
	}
	return noun, nil
}

// SubmitGuess records a typed guess as pending in the current scene, the
// same way a transcribed word is recorded.
func (e *Engine) SubmitGuess(ctx context.Context, userID, noun string) (string, error) {
	noun = lower(strings.TrimSpace(noun))
	if noun == "" {
		return "", ErrEmptyNoun
	}
	scene, err := e.CurrentScene(ctx)
	if err != nil {
		return "", err
	}
	if err := e.store.Set(context.WithoutCancel(ctx), GuessPath(userID, scene, noun), GuessPending); err != nil {
		return "", fmt.Errorf("submit guess %q: %w", noun, err)
	}
	return scene, nil
}
