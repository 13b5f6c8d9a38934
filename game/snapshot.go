package game

import (
	"context"
	"encoding/json"
	"fmt"
)

// SceneSnapshot is everything the projector shows for one scene.
type SceneSnapshot struct {
	Scene         string             `json:"scene"`
	TotalScore    int                `json:"total_score"`
	Languages     LangMix            `json:"languages"`
	Summaries     map[string]Summary `json:"summaries"`
	RecentGuesses []GuessLogEntry    `json:"recent_guesses"`
}

// SceneSnapshot reads the aggregates of scene and its last recent guesses,
// oldest first.
func (e *Engine) SceneSnapshot(ctx context.Context, scene string, recent int) (SceneSnapshot, error) {
	snap := SceneSnapshot{
		Scene:         scene,
		Languages:     LangMix{},
		Summaries:     map[string]Summary{},
		RecentGuesses: []GuessLogEntry{},
	}
	if _, err := e.store.Get(ctx, TotalScorePath(scene), &snap.TotalScore); err != nil {
		return snap, err
	}
	if _, err := e.store.Get(ctx, TotalLangsPath(scene), &snap.Languages); err != nil {
		return snap, err
	}

	summaries, err := e.store.Children(ctx, SummariesPath(scene))
	if err != nil {
		return snap, fmt.Errorf("list summaries: %w", err)
	}
	for _, c := range summaries {
		var s Summary
		if err := json.Unmarshal(c.Value, &s); err != nil {
			return snap, fmt.Errorf("decode summary %s: %w", c.Key, err)
		}
		snap.Summaries[c.Key] = s
	}

	guesses, err := e.store.Children(ctx, GuessLogPath(scene))
	if err != nil {
		return snap, fmt.Errorf("list guesses: %w", err)
	}
	if recent >= 0 && len(guesses) > recent {
		guesses = guesses[len(guesses)-recent:]
	}
	for _, c := range guesses {
		var g GuessLogEntry
		if err := json.Unmarshal(c.Value, &g); err != nil {
			return snap, fmt.Errorf("decode guess %s: %w", c.Key, err)
		}
		snap.RecentGuesses = append(snap.RecentGuesses, g)
	}
	return snap, nil
}
