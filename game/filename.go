package game

import (
	"fmt"
	"regexp"

	"golang.org/x/text/language"

	"saythat-server/gameerrors"
)

// SpeechFile is the decoded name of an uploaded recording.
type SpeechFile struct {
	UserID    string
	Lang      string
	Timestamp string
}

var speechFilenameRe = regexp.MustCompile(`^(?:.*/)?(\w+)\.([A-Za-z-]+)\.(\d+)\.raw$`)

// ParseSpeechFilename decodes "<userId>.<languageTag>.<timestamp>.raw",
// optionally preceded by a directory such as "speech/".
func ParseSpeechFilename(name string) (SpeechFile, error) {
	m := speechFilenameRe.FindStringSubmatch(name)
	if m == nil {
		return SpeechFile{}, fmt.Errorf("%w: %q", gameerrors.ErrMalformedFilename, name)
	}
	if _, err := language.Parse(m[2]); err != nil {
		return SpeechFile{}, fmt.Errorf("%w: %q: bad language tag: %v", gameerrors.ErrMalformedFilename, name, err)
	}
	return SpeechFile{UserID: m[1], Lang: m[2], Timestamp: m[3]}, nil
}

// SpeechObjectName is the inverse of ParseSpeechFilename.
func SpeechObjectName(userID, lang, timestamp string) string {
	return fmt.Sprintf("speech/%s.%s.%s.raw", userID, lang, timestamp)
}
