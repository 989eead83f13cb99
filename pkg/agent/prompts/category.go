package prompts

import "regexp"

// TaskCategory is a coarse classification of a task by its wording.
type TaskCategory string

const (
	CategoryGeneral       TaskCategory = "general"
	CategoryMediaPlayback TaskCategory = "media_playback"
	CategoryShopping      TaskCategory = "shopping"
	CategoryForm          TaskCategory = "form"
	CategorySearch        TaskCategory = "search"
)

// categoryRules are checked in order; the first match wins.
var categoryRules = []struct {
	category TaskCategory
	pattern  *regexp.Regexp
}{
	{CategoryMediaPlayback, regexp.MustCompile(`(?i)\b(play|playing|listen|listening|watch|watching|music|songs?|videos?|playlists?|podcasts?|stream|streaming|album|radio|youtube|spotify|soundcloud|twitch)\b`)},
	{CategoryShopping, regexp.MustCompile(`(?i)\b(buy|purchase|order|checkout|shop|shopping|add to (the )?cart|cart)\b`)},
	{CategoryForm, regexp.MustCompile(`(?i)\b(fill( out| in)?|sign ?up|register|log ?in|submit|form|apply)\b`)},
	{CategorySearch, regexp.MustCompile(`(?i)\b(search|find|look ?up|google|research)\b`)},
}

// ClassifyTask sorts a task into one of a closed set of categories by
// keyword. It is a heuristic; anything unmatched is general.
func ClassifyTask(task string) TaskCategory {
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(task) {
			return rule.category
		}
	}
	return CategoryGeneral
}
