package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"saythat-server/speech"
)

// guessWriteLimit bounds concurrent guess writes for one transcription.
const guessWriteLimit = 8

// AnalyzeSpeech transcribes an uploaded recording and records each word of
// the first alternative as a pending guess in the current scene. The
// upload's in-progress marker is removed once the transcription has been
// handled, even when some guess writes failed. A malformed object name is
// reported without touching the store.
func (e *Engine) AnalyzeSpeech(ctx context.Context, objectName, audioURL string) error {
	file, err := ParseSpeechFilename(objectName)
	if err != nil {
		slog.Error("failed to parse speech filename", "tag", "game", "name", objectName, "error", err)
		return err
	}

	start := time.Now()
	results, err := e.recognizer.Recognize(ctx, audioURL, speech.Request{
		Encoding:        e.encoding,
		LanguageCode:    file.Lang,
		ProfanityFilter: true,
	})
	e.metrics.RecordTranscription(ctx, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("recognize %s: %w", objectName, err)
	}
	transcription, err := speech.FirstTranscript(results)
	if err != nil {
		return fmt.Errorf("recognize %s: %w", objectName, err)
	}

	scene, err := e.CurrentScene(ctx)
	if err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)
	var writeErr error
	if strings.TrimSpace(transcription) == "" {
		slog.Info("empty transcription, nothing written", "tag", "game", "user", file.UserID, "scene", scene)
	} else {
		writeErr = e.writeNounsAsGuesses(ctx, file.UserID, scene, transcription)
	}
	if err := e.markProcessCompleted(ctx, file.UserID, scene, file.Timestamp); err != nil {
		return errors.Join(writeErr, err)
	}
	return writeErr
}

// writeNounsAsGuesses stores every whitespace-separated word of
// transcription, lower-cased, as a pending guess. An existing judgement of
// the same word is reset to pending.
func (e *Engine) writeNounsAsGuesses(ctx context.Context, userID, scene, transcription string) error {
	seen := make(map[string]bool)
	var tasks []task
	for _, word := range strings.Fields(transcription) {
		noun := lower(word)
		if seen[noun] {
			continue
		}
		seen[noun] = true
		tasks = append(tasks, task{
			name: noun,
			run: func(ctx context.Context) error {
				return e.store.Set(ctx, GuessPath(userID, scene, noun), GuessPending)
			},
		})
	}
	slog.Debug("writing guesses", "tag", "game", "user", userID, "scene", scene, "count", len(tasks))
	return joinFailures("write guesses", runAll(ctx, guessWriteLimit, tasks))
}

func (e *Engine) markProcessCompleted(ctx context.Context, userID, scene, timestamp string) error {
	if err := e.store.Remove(ctx, InProgressPath(userID, scene, timestamp)); err != nil {
		return fmt.Errorf("clear in-progress marker %s: %w", timestamp, err)
	}
	return nil
}

// StartUpload records the in-progress marker for a recording the user is
// about to upload and returns the object name it must be stored under.
func (e *Engine) StartUpload(ctx context.Context, userID, timestamp string) (string, error) {
	scene, err := e.CurrentScene(ctx)
	if err != nil {
		return "", err
	}
	langCode, err := e.UserLanguage(ctx, userID)
	if err != nil {
		return "", err
	}
	name := SpeechObjectName(userID, langCode, timestamp)
	if _, err := ParseSpeechFilename(name); err != nil {
		return "", err
	}
	if err := e.store.Set(context.WithoutCancel(ctx), InProgressPath(userID, scene, timestamp), name); err != nil {
		return "", fmt.Errorf("mark upload in progress: %w", err)
	}
	return name, nil
}
