package game

import (
	"context"
	"fmt"
	"log/slog"

	"saythat-server/store"
)

// JudgeGuessedNoun decides whether noun is a correct guess for the user's
// language in scene and updates the guess state, the guess log, the user's
// score and the noun summary.
//
// Writing the verdict to the guess state claims the judgement: it only
// succeeds while the guess is pending (or absent), so a duplicate invocation
// finds it already judged and changes nothing. Once claimed, the other three
// updates are independent: each is attempted, failures are returned together
// and nothing is rolled back.
//
// guessedBefore reports that the user already had a judged guess for this
// noun, in which case a correct guess does not score again.
func (e *Engine) JudgeGuessedNoun(ctx context.Context, userID, scene, noun string, guessedBefore bool) error {
	ctx = context.WithoutCancel(ctx)
	noun = lower(e.filter.Clean(noun))

	userLang, err := e.UserLanguage(ctx, userID)
	if err != nil {
		return err
	}
	english, correct, err := e.originalNoun(ctx, scene, userLang, noun)
	if err != nil {
		return err
	}
	diff := 0
	if correct && !guessedBefore {
		diff = 1
	}
	claimed, err := e.claimGuess(ctx, userID, scene, noun, correct)
	if err != nil {
		return fmt.Errorf("judge %q for %s: guess state: %w", noun, userID, err)
	}
	if !claimed {
		slog.Debug("guess already judged", "tag", "game", "user", userID, "scene", scene, "noun", noun)
		return nil
	}
	e.metrics.RecordGuess(ctx, correct, userLang)
	slog.Debug("guess judged", "tag", "game", "user", userID, "scene", scene, "noun", noun, "lang", userLang, "correct", correct, "diff", diff)

	var translated *string
	if correct {
		translated = &english
	}
	failed := runAll(ctx, 0, []task{
		{"guess log", func(ctx context.Context) error {
			return e.appendGuessLog(ctx, scene, GuessLogEntry{
				Original:    noun,
				Correctness: correctness(correct),
				Lang:        userLang,
				Translated:  translated,
			})
		}},
		{"score", func(ctx context.Context) error {
			return e.updateScore(ctx, userID, scene, diff)
		}},
		{"summary", func(ctx context.Context) error {
			return e.updateSummary(ctx, scene, english, userLang, diff)
		}},
	})
	return joinFailures(fmt.Sprintf("judge %q for %s", noun, userID), failed)
}

// claimGuess writes the verdict to the guess state if the guess is still
// waiting to be judged, and reports whether it did.
func (e *Engine) claimGuess(ctx context.Context, userID, scene, noun string, correct bool) (bool, error) {
	claimed := false
	err := store.Update(ctx, e.store, GuessPath(userID, scene, noun), func(cur string, exists bool) (string, error) {
		if exists && cur != GuessPending {
			claimed = false
			return "", store.ErrAbort
		}
		claimed = true
		return correctness(correct), nil
	})
	return claimed, err
}

// originalNoun looks noun up in the scene dictionary for lang.
func (e *Engine) originalNoun(ctx context.Context, scene, lang, noun string) (string, bool, error) {
	var english string
	ok, err := e.store.Get(ctx, DictionaryPath(scene, lang, noun), &english)
	if err != nil {
		return "", false, fmt.Errorf("look up %q in %s: %w", noun, lang, err)
	}
	return english, ok, nil
}

func (e *Engine) appendGuessLog(ctx context.Context, scene string, entry GuessLogEntry) error {
	_, err := e.store.Push(ctx, GuessLogPath(scene), entry)
	return err
}

// updateScore adds diff to the user's scene score. A zero diff writes nothing.
func (e *Engine) updateScore(ctx context.Context, userID, scene string, diff int) error {
	if diff == 0 {
		return nil
	}
	return store.Update(ctx, e.store, ScorePath(userID, scene), func(cur int, _ bool) (int, error) {
		return cur + diff, nil
	})
}

// updateSummary credits lang with diff on the noun summary. Non-positive
// diffs leave the summary alone.
func (e *Engine) updateSummary(ctx context.Context, scene, english, lang string, diff int) error {
	if diff <= 0 {
		return nil
	}
	return store.Update(ctx, e.store, SummaryPath(scene, english), func(cur Summary, _ bool) (Summary, error) {
		return applySummary(cur, lang, diff), nil
	})
}

// applySummary adds diff to lang's count, drops languages whose count is
// zero and recomputes NumLangs from what is left.
func applySummary(s Summary, lang string, diff int) Summary {
	if s.Langs == nil {
		s.Langs = make(map[string]int)
	}
	s.Langs[lang] += diff
	if s.Langs[lang] == 0 {
		delete(s.Langs, lang)
	}
	s.NumLangs = len(s.Langs)
	s.Score += diff
	return s
}
