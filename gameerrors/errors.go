package gameerrors

import "errors"

// Sentinel errors shared by the game engine and the speech/translate clients.
// Kept in their own package so service clients do not import the engine.
var (
	ErrMalformedFilename = errors.New("malformed speech filename")
	ErrUnexpectedShape   = errors.New("unexpected response shape")
	ErrUnknownLanguage   = errors.New("unsupported language")
	ErrNoCurrentScene    = errors.New("no current scene")
)
