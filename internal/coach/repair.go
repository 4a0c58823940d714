package coach

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Verdict tags how much work the repair layer had to do on an
// evaluator response.
type Verdict int

const (
	// Valid means the response decoded cleanly with every field present
	// and in range.
	Valid Verdict = iota
	// Repaired means one or more fields were backfilled, coerced, or
	// clamped.
	Repaired
	// Fallback means the response was unusable and the canonical
	// fallback result was substituted.
	Fallback
)

func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case Repaired:
		return "repaired"
	default:
		return "fallback"
	}
}

// Repair parses raw evaluator output and normalizes it into a Result.
// The evaluator is untrusted input: missing fields are backfilled with
// safe defaults, numbers are clamped, and unparseable payloads degrade
// to the canonical fallback rather than surfacing an error.
//
// heuristicWPM is the words-per-minute computed from the transcript,
// used when the evaluator omitted its own figure. fallbackPrompt seeds
// next_prompt on total failure.
func Repair(raw string, heuristicWPM int, fallbackPrompt string) (Result, Verdict) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(raw)), &fields); err != nil || fields == nil {
		return FallbackResult(heuristicWPM, fallbackPrompt), Fallback
	}

	r := repairer{fields: fields}
	out := Result{
		Fallback:      false,
		CEFREstimate:  r.str("cefr_estimate", ""),
		FriendlyLevel: r.optStr("friendly_level"),
		Rationale:     r.str("rationale", ""),
		OneThingToFix: r.oneThingToFix(),
		NextPrompt:    r.str("next_prompt", fallbackPrompt),
	}

	if out.FriendlyLevel == "" {
		out.FriendlyLevel = FriendlyLevelFor(out.CEFREstimate)
		r.dirty = true
	}

	score := r.num("level_score", 50)
	out.LevelScore = clamp(score, 0, 100)
	if out.LevelScore != score {
		r.dirty = true
	}
	out.Fluency = r.fluency(heuristicWPM)
	out.Relevance = r.relevance()
	out.GrammarIssues = r.grammarIssues()
	out.Pronunciation = r.pronunciation()

	if r.dirty {
		return out, Repaired
	}
	return out, Valid
}

// stripFences removes a markdown code fence wrapper if the evaluator
// ignored the no-markdown instruction.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

type repairer struct {
	fields map[string]json.RawMessage
	dirty  bool
}

func (r *repairer) raw(key string) (json.RawMessage, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// str returns the string at key, or def (marking the result repaired)
// when the key is missing or not a string.
func (r *repairer) str(key, def string) string {
	if v, ok := r.raw(key); ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			return s
		}
	}
	r.dirty = true
	return def
}

// optStr reads a string without marking absence as a repair; the caller
// decides whether absence matters.
func (r *repairer) optStr(key string) string {
	if v, ok := r.raw(key); ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			return s
		}
	}
	return ""
}

// num accepts JSON numbers and numeric strings, rounding floats.
func (r *repairer) num(key string, def int) int {
	v, ok := r.raw(key)
	if !ok {
		r.dirty = true
		return def
	}
	if n, ok := decodeNum(v); ok {
		return n
	}
	r.dirty = true
	return def
}

func decodeNum(v json.RawMessage) (int, bool) {
	var f float64
	if json.Unmarshal(v, &f) == nil {
		return int(f + 0.5), true
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return int(f + 0.5), true
		}
	}
	return 0, false
}

func (r *repairer) fluency(heuristicWPM int) Fluency {
	out := Fluency{WPM: heuristicWPM, Fillers: 0, Note: emptyNote}
	v, ok := r.raw("fluency")
	if !ok {
		r.dirty = true
		return out
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(v, &obj) != nil {
		r.dirty = true
		return out
	}
	sub := repairer{fields: obj}
	out.WPM = sub.num("wpm", heuristicWPM)
	out.Fillers = sub.num("fillers", 0)
	out.Note = sub.str("note", emptyNote)
	if out.WPM < 0 {
		out.WPM = 0
		sub.dirty = true
	}
	if out.Fillers < 0 {
		out.Fillers = 0
		sub.dirty = true
	}
	r.dirty = r.dirty || sub.dirty
	return out
}

func (r *repairer) relevance() Relevance {
	out := Relevance{Score: 50, Note: emptyNote}
	v, ok := r.raw("relevance")
	if !ok {
		r.dirty = true
		return out
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(v, &obj) != nil {
		r.dirty = true
		return out
	}
	sub := repairer{fields: obj}
	score := sub.num("score", 50)
	out.Score = clamp(score, 0, 100)
	if out.Score != score {
		sub.dirty = true
	}
	out.Note = sub.str("note", emptyNote)
	r.dirty = r.dirty || sub.dirty
	return out
}

func (r *repairer) grammarIssues() []GrammarIssue {
	out := []GrammarIssue{}
	v, ok := r.raw("grammar_issues")
	if !ok {
		r.dirty = true
		return out
	}
	var items []GrammarIssue
	if json.Unmarshal(v, &items) != nil {
		r.dirty = true
		return out
	}
	if items != nil {
		out = items
	}
	return out
}

func (r *repairer) pronunciation() []PronunciationNote {
	out := []PronunciationNote{}
	v, ok := r.raw("pronunciation")
	if !ok {
		r.dirty = true
		return out
	}
	var items []PronunciationNote
	if json.Unmarshal(v, &items) != nil {
		r.dirty = true
		return out
	}
	if items != nil {
		out = items
	}
	return out
}

// oneThingToFix also accepts the "one_think_to_fix" spelling that an
// earlier evaluator prompt taught some models to emit.
func (r *repairer) oneThingToFix() string {
	if v, ok := r.raw("one_thing_to_fix"); ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			return s
		}
	}
	if v, ok := r.raw("one_think_to_fix"); ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			r.dirty = true
			return s
		}
	}
	r.dirty = true
	return ""
}
