// Package hostility flags messages that insult the portfolio owner.
//
// It is a plain substring filter over a fixed block-list, not sentiment
// analysis: misspellings and creative phrasing get through, and a harmless
// word that happens to contain a listed term is flagged.
package hostility

import "strings"

// Decision carries the verdict and the terms that triggered it.
type Decision struct {
	Hostile bool
	Terms   []string
}

var blockList = []string{
	"stupid", "suck", "idiot", "dumb", "useless", "loser", "trash", "garbage",
	"pathetic", "worthless", "incompetent", "clown", "moron", "noob", "fraud",
	"ugly", "shut up", "hate you", "hate him", "nobody cares", "waste of time",
	"can't code", "cant code", "bad at coding", "not a real engineer",
}

// IsHostile reports whether text contains any block-listed term, ignoring case.
func IsHostile(text string) bool {
	normalized := normalize(text)
	if normalized == "" {
		return false
	}
	for _, term := range blockList {
		if strings.Contains(normalized, term) {
			return true
		}
	}
	return false
}

// Analyze returns every block-listed term found in text.
func Analyze(text string) Decision {
	normalized := normalize(text)
	if normalized == "" {
		return Decision{}
	}

	var terms []string
	for _, term := range blockList {
		if strings.Contains(normalized, term) {
			terms = append(terms, term)
		}
	}
	return Decision{Hostile: len(terms) > 0, Terms: terms}
}

// Terms returns a copy of the block-list.
func Terms() []string {
	return append([]string(nil), blockList...)
}

func normalize(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	// Curly apostrophes from mobile keyboards.
	return strings.ReplaceAll(lowered, "’", "'")
}
