package game

import (
	"context"
	"fmt"
	"log/slog"

	"saythat-server/gameerrors"
	"saythat-server/lang"
)

// SetDefaults gives a newly registered user the default language.
func (e *Engine) SetDefaults(ctx context.Context, userID string) error {
	ctx = context.WithoutCancel(ctx)
	if err := e.store.Set(ctx, UserLangPath(userID), DefaultLanguage); err != nil {
		return fmt.Errorf("set defaults for %s: %w", userID, err)
	}
	slog.Info("user defaults set", "tag", "game", "user", userID)
	return nil
}

// SetLanguage changes the language a user plays in.
func (e *Engine) SetLanguage(ctx context.Context, userID string, l Language) error {
	if !lang.IsSupported(l.Code) {
		return fmt.Errorf("%w: %q", gameerrors.ErrUnknownLanguage, l.Code)
	}
	if l.Name == "" {
		l.Name = l.Code
	}
	if err := e.store.Set(context.WithoutCancel(ctx), UserLangPath(userID), l); err != nil {
		return fmt.Errorf("set language for %s: %w", userID, err)
	}
	return nil
}

// UserLanguage returns the user's language tag. Users that never got
// defaults are treated as speaking the source language.
func (e *Engine) UserLanguage(ctx context.Context, userID string) (string, error) {
	var l Language
	ok, err := e.store.Get(ctx, UserLangPath(userID), &l)
	if err != nil {
		return "", fmt.Errorf("read language of %s: %w", userID, err)
	}
	if !ok || l.Code == "" {
		slog.Warn("user has no language, assuming default", "tag", "game", "user", userID)
		return DefaultLanguage.Code, nil
	}
	return l.Code, nil
}
