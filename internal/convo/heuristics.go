package convo

import (
	"regexp"
	"sort"
	"strings"
)

// The heuristics in this file are pure functions over their inputs so they
// can be unit-tested without a live model or backend.

// Intent is the inferred purpose of the user's question.
type Intent string

const (
	IntentTroubleshooting  Intent = "troubleshooting"
	IntentMaintenance      Intent = "maintenance"
	IntentPartsManagement  Intent = "parts_management"
	IntentTechnicianLookup Intent = "technician_lookup"
)

// intentKeywords is checked in order; the first category with a keyword
// hit wins.
var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentTroubleshooting, []string{"broken", "down", "error", "fault", "problem", "issue", "trouble"}},
	{IntentMaintenance, []string{"maintenance", "service", "repair", "fix", "history"}},
	{IntentPartsManagement, []string{"parts", "inventory", "stock", "order"}},
	{IntentTechnicianLookup, []string{"technician", "who", "expert", "assign"}},
}

// ClassifyIntent returns the intent of the lower-cased input, or false when
// no keyword matches (the caller keeps the prior intent).
func ClassifyIntent(input string) (Intent, bool) {
	lower := strings.ToLower(input)
	for _, group := range intentKeywords {
		for _, kw := range group.keywords {
			if containsWord(lower, kw) {
				return group.intent, true
			}
		}
	}
	return "", false
}

// locationPatterns is a fixed ordered list; the first match wins.
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`building ([a-z])`),
	regexp.MustCompile(`floor (\d+)`),
	regexp.MustCompile(`(shipping|receiving|assembly|utilities)`),
	regexp.MustCompile(`in ([a-z][a-z0-9\s-]+)`),
}

// ExtractLocation returns the location mentioned in the input, or false
// when nothing matches.
func ExtractLocation(input string) (string, bool) {
	lower := strings.ToLower(input)
	for _, pattern := range locationPatterns {
		if m := pattern.FindStringSubmatch(lower); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// ExtractPriority returns the priority filter implied by the input, or
// false when nothing matches.
func ExtractPriority(input string) (string, bool) {
	lower := strings.ToLower(input)
	for _, kw := range []string{"urgent", "emergency", "critical"} {
		if containsWord(lower, kw) {
			return "urgent", true
		}
	}
	if strings.Contains(lower, "high priority") || containsWord(lower, "important") {
		return "high", true
	}
	return "", false
}

// referencePhrases maps surface phrases to the entity kind they refer to.
// Kinds are checked in a fixed order; the first phrase hit wins.
var referencePhrases = []struct {
	kind    Kind
	phrases []string
}{
	{KindMachine, []string{"it", "that machine", "the machine", "this equipment"}},
	{KindTicket, []string{"that ticket", "the ticket", "this issue", "that problem"}},
	{KindTechnician, []string{"that technician", "the technician", "they", "them"}},
	{KindPart, []string{"that part", "the part", "those parts"}},
}

// ReferenceKind returns the entity kind a pronoun or reference phrase in
// the input points at, or false when the input contains no reference.
// Phrases match on word boundaries so "with" never triggers "it".
func ReferenceKind(input string) (Kind, bool) {
	lower := strings.ToLower(input)
	for _, group := range referencePhrases {
		for _, phrase := range group.phrases {
			if containsPhrase(lower, phrase) {
				return group.kind, true
			}
		}
	}
	return "", false
}

// MostRecent returns the most recently used entity of the given kind from
// the snapshot (tie-break: most recent mention turn). The snapshot is not
// modified.
func MostRecent(snapshot []Entity, kind Kind) (Entity, bool) {
	var candidates []Entity
	for _, e := range snapshot {
		if e.Key.Kind == kind {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return Entity{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].LastUsedTurn != candidates[j].LastUsedTurn {
			return candidates[i].LastUsedTurn > candidates[j].LastUsedTurn
		}
		return candidates[i].MentionedTurn > candidates[j].MentionedTurn
	})
	return candidates[0], true
}

// containsWord reports whether lower contains w as a whole word.
func containsWord(lower, w string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], w)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(w)
		beforeOK := start == 0 || !isWordChar(lower[start-1])
		afterOK := end == len(lower) || !isWordChar(lower[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

// containsPhrase matches a multi-word phrase on word boundaries.
func containsPhrase(lower, phrase string) bool {
	return containsWord(lower, phrase)
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_'
}
