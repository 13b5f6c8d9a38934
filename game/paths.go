package game

import "saythat-server/store"

// CurrentScenePath holds the id of the scene being played.
var CurrentScenePath = store.Join("admin", "current_scene")

func UserPath(userID string) string {
	return store.Join("users", userID)
}

func UserLangPath(userID string) string {
	return store.Join("users", userID, "lang")
}

func GuessPath(userID, scene, noun string) string {
	return store.Join("users", userID, "scenes", scene, "nouns", noun)
}

func InProgressPath(userID, scene, timestamp string) string {
	return store.Join("users", userID, "scenes", scene, "in_progress", timestamp)
}

func ScorePath(userID, scene string) string {
	return store.Join("users", userID, "scenes", scene, "score")
}

// TalliedScorePath holds how much of the user's scene score the scene totals
// already include.
func TalliedScorePath(userID, scene string) string {
	return store.Join("users", userID, "scenes", scene, "tallied")
}

// DictionaryPath maps a noun in lang to its English original.
func DictionaryPath(scene, lang, noun string) string {
	return store.Join("admin", "scenes", scene, "nouns", lang, noun)
}

func GuessLogPath(scene string) string {
	return store.Join("all_guesses", scene)
}

func SummaryPath(scene, englishNoun string) string {
	return store.Join("summary", scene, englishNoun)
}

func SummariesPath(scene string) string {
	return store.Join("summary", scene)
}

func TotalScorePath(scene string) string {
	return store.Join("total_scores", scene)
}

func TotalLangsPath(scene string) string {
	return store.Join("total_langs", scene)
}
