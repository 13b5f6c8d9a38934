package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"saythat-server/lang"
	"saythat-server/store"
	"saythat-server/translate"
)

// summaryTask names the summary seed in a FanoutError.
const summaryTask = "summary"

// FanoutError reports the sub-operations of a NounAdded call that failed.
// Work done by the other sub-operations has already been stored.
type FanoutError struct {
	Scene     string
	Noun      string
	Attempted int
	Failed    map[string]error
}

func (e *FanoutError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fan-out of %q in scene %s: %d of %d failed", e.Noun, e.Scene, len(e.Failed), e.Attempted)
	for _, name := range sortedKeys(e.Failed) {
		fmt.Fprintf(&b, "; %s: %v", name, e.Failed[name])
	}
	return b.String()
}

func (e *FanoutError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, name := range sortedKeys(e.Failed) {
		errs = append(errs, e.Failed[name])
	}
	return errs
}

// NounAdded translates a new English noun into every supported language and
// registers each translation in the scene dictionary, then resets the noun's
// summary. Translations run concurrently and independently. A translated
// word already mapped to some English noun keeps its existing mapping.
func (e *Engine) NounAdded(ctx context.Context, scene, noun string) error {
	ctx = context.WithoutCancel(ctx)
	var tasks []task
	for _, tag := range lang.Supported() {
		if tag == lang.Source {
			continue
		}
		tasks = append(tasks, task{
			name: tag,
			run: func(ctx context.Context) error {
				return e.addTranslation(ctx, scene, noun, tag)
			},
		})
	}
	tasks = append(tasks, task{
		name: summaryTask,
		run: func(ctx context.Context) error {
			return e.store.Set(ctx, SummaryPath(scene, noun), Summary{})
		},
	})

	failed := runAll(ctx, e.fanoutLimit, tasks)
	if len(failed) > 0 {
		slog.Warn("noun fan-out incomplete", "tag", "game", "scene", scene, "noun", noun, "failed", len(failed), "attempted", len(tasks))
		return &FanoutError{Scene: scene, Noun: noun, Attempted: len(tasks), Failed: failed}
	}
	slog.Info("noun translated", "tag", "game", "scene", scene, "noun", noun, "languages", len(tasks)-1)
	return nil
}

func (e *Engine) addTranslation(ctx context.Context, scene, noun, tag string) error {
	code, _ := lang.TranslationCode(tag)
	from, _ := lang.TranslationCode(lang.Source)
	result, err := e.translator.Translate(ctx, noun, from, code)
	if err == nil {
		var word string
		word, err = translate.FirstAlternative(result)
		if err == nil {
			_, err = store.SetIfAbsent(ctx, e.store, DictionaryPath(scene, tag, lower(word)), noun)
		}
	}
	e.metrics.RecordTranslation(ctx, tag, err)
	return err
}
