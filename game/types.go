package game

// Guess states stored at a user's guess path.
const (
	GuessPending   = "maybe..."
	GuessCorrect   = "true"
	GuessIncorrect = "false"
)

// NumLanguagesKey is the language-mix field counting languages with a
// positive contribution.
const NumLanguagesKey = "numLanguages"

// Language is a user's chosen spoken language.
type Language struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// DefaultLanguage is assigned to every new user.
var DefaultLanguage = Language{Name: "English", Code: "en-US"}

// GuessLogEntry is one record of a scene's append-only guess log.
// Translated is nil for incorrect guesses.
type GuessLogEntry struct {
	Original    string  `json:"original"`
	Correctness string  `json:"correctness"`
	Lang        string  `json:"lang"`
	Translated  *string `json:"translated"`
}

// Summary aggregates the correct guesses of one English noun across languages.
type Summary struct {
	Langs    map[string]int `json:"langs,omitempty"`
	NumLangs int            `json:"num_langs"`
	Score    int            `json:"score"`
}

// LangMix is a scene's collective score split by language. It holds one
// counter per language plus NumLanguagesKey.
type LangMix map[string]int

func correctness(correct bool) string {
	if correct {
		return GuessCorrect
	}
	return GuessIncorrect
}
