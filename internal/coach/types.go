// Package coach defines the structured feedback contract returned to
// clients, plus the repair layer that normalizes untrusted evaluator
// output into that contract.
package coach

import "strings"

// Fluency carries the pacing metrics of one spoken sample.
type Fluency struct {
	WPM     int    `json:"wpm"`
	Fillers int    `json:"fillers"`
	Note    string `json:"note"`
}

// GrammarIssue is a single correction suggested by the evaluator.
type GrammarIssue struct {
	Error string `json:"error"`
	Fix   string `json:"fix"`
	Why   string `json:"why"`
}

// PronunciationNote flags one sound or word worth practicing.
type PronunciationNote struct {
	SoundOrWord string `json:"sound_or_word"`
	Issue       string `json:"issue"`
	MinimalPair string `json:"minimal_pair"`
}

// Relevance scores how well the sample addressed the given prompt.
type Relevance struct {
	Score int    `json:"score"`
	Note  string `json:"note"`
}

// Result is the feedback object the analyze endpoint returns. Every
// numeric field is clamped to its range before a Result leaves the
// server, no matter what the evaluator produced.
type Result struct {
	Fallback      bool                `json:"fallback"`
	CEFREstimate  string              `json:"cefr_estimate"`
	FriendlyLevel string              `json:"friendly_level"`
	LevelScore    int                 `json:"level_score"`
	Rationale     string              `json:"rationale"`
	Fluency       Fluency             `json:"fluency"`
	GrammarIssues []GrammarIssue      `json:"grammar_issues"`
	Pronunciation []PronunciationNote `json:"pronunciation"`
	OneThingToFix string              `json:"one_thing_to_fix"`
	NextPrompt    string              `json:"next_prompt"`
	Relevance     Relevance           `json:"relevance"`
}

// Canonical fallback constants for too-short or too-quiet input.
const (
	FallbackCEFR       = "A1"
	FallbackLevel      = "Beginner"
	FallbackLevelScore = 20
	FallbackFix        = "Speak for at least 30–60 seconds in full sentences."
	FallbackRelNote    = "Not enough content to assess."

	emptyNote = "—"
)

// FallbackResult builds the deterministic result used when the input is
// too short or sparse to evaluate. It never touches a provider.
func FallbackResult(wpm int, nextPrompt string) Result {
	return Result{
		Fallback:      true,
		CEFREstimate:  FallbackCEFR,
		FriendlyLevel: FallbackLevel,
		LevelScore:    FallbackLevelScore,
		Fluency:       Fluency{WPM: wpm, Fillers: 0, Note: emptyNote},
		GrammarIssues: []GrammarIssue{},
		Pronunciation: []PronunciationNote{},
		OneThingToFix: FallbackFix,
		NextPrompt:    nextPrompt,
		Relevance:     Relevance{Score: 50, Note: FallbackRelNote},
	}
}

var cefrLevels = []struct {
	code     string
	friendly string
}{
	{"A1", "Beginner"},
	{"A2", "Elementary"},
	{"B1", "Intermediate"},
	{"B2", "Advanced"},
	{"C1", "Fluent"},
	{"C2", "Native-like"},
}

// FriendlyLevelFor maps a CEFR estimate to its friendly label. The
// evaluator sometimes decorates the code ("B2 (strong)"), so matching
// is by prefix. Unknown or blank estimates land on "Intermediate".
func FriendlyLevelFor(cefr string) string {
	code := strings.ToUpper(strings.TrimSpace(cefr))
	for _, l := range cefrLevels {
		if strings.HasPrefix(code, l.code) {
			return l.friendly
		}
	}
	return "Intermediate"
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
