package game

import (
	"context"
	"fmt"
	"log/slog"

	"saythat-server/store"
)

// UpdateCollectiveScores applies a change of diff in one user's scene score
// to the scene total and to the per-language mix. diff may be negative.
// Callers derive diff from the stored before and after score, so a replay of
// an unchanged score arrives as zero and must be skipped by the caller.
func (e *Engine) UpdateCollectiveScores(ctx context.Context, userID, scene string, diff int) error {
	ctx = context.WithoutCancel(ctx)
	userLang, err := e.UserLanguage(ctx, userID)
	if err != nil {
		return err
	}
	failed := runAll(ctx, 0, []task{
		{"total score", func(ctx context.Context) error {
			return store.Update(ctx, e.store, TotalScorePath(scene), func(cur int, exists bool) (int, error) {
				if !exists {
					slog.Warn("scene total missing, starting from zero", "tag", "game", "scene", scene)
				}
				return cur + diff, nil
			})
		}},
		{"language mix", func(ctx context.Context) error {
			return store.Update(ctx, e.store, TotalLangsPath(scene), func(cur LangMix, _ bool) (LangMix, error) {
				return applyLangMix(cur, userLang, diff), nil
			})
		}},
	})
	return joinFailures(fmt.Sprintf("collective scores of %s", scene), failed)
}

// SettleCollectiveScore brings the scene totals up to date with the user's
// current scene score. The tallied marker records how much of the score the
// totals already hold; it is advanced in a transaction that reads the score
// afresh, so repeated or reordered score notifications count each point once.
func (e *Engine) SettleCollectiveScore(ctx context.Context, userID, scene string) error {
	ctx = context.WithoutCancel(ctx)
	diff := 0
	err := store.Update(ctx, e.store, TalliedScorePath(userID, scene), func(tallied int, _ bool) (int, error) {
		var score int
		if _, err := e.store.Get(ctx, ScorePath(userID, scene), &score); err != nil {
			return 0, err
		}
		diff = score - tallied
		if diff == 0 {
			return 0, store.ErrAbort
		}
		return score, nil
	})
	if err != nil {
		return fmt.Errorf("settle score of %s in %s: %w", userID, scene, err)
	}
	if diff == 0 {
		return nil
	}
	return e.UpdateCollectiveScores(ctx, userID, scene, diff)
}

// applyLangMix adds diff to lang's counter. A language joins the count of
// languages when its counter leaves zero and leaves it when the counter
// drops to zero or below; counters are clamped at zero.
func applyLangMix(mix LangMix, lang string, diff int) LangMix {
	if mix == nil {
		mix = make(LangMix)
	}
	if _, ok := mix[NumLanguagesKey]; !ok {
		mix[NumLanguagesKey] = 0
	}
	if mix[lang] == 0 {
		mix[NumLanguagesKey]++
		mix[lang] = 0
	}
	mix[lang] += diff
	if mix[lang] <= 0 {
		mix[NumLanguagesKey]--
		mix[lang] = 0
	}
	return mix
}
