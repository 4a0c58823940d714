// Package prompts holds the speaking prompt bank, keyed by practice goal.
package prompts

import "math/rand"

// DefaultGoal is used when a submission carries no goal.
const DefaultGoal = "General English"

// DefaultNext is the prompt suggested when the evaluator supplied none,
// including on every fallback result.
const DefaultNext = "Describe your last weekend in about 45 seconds."

var bank = map[string][]string{
	"Work English": {
		"Describe a recent project you led and one lesson you learned.",
		"Tell me about a challenge your team faced and how you solved it.",
	},
	"Daily Life": {
		"Describe your ideal weekend and why you enjoy it.",
		"Talk about a hobby you recently started.",
	},
	"Interview Prep": {
		"Tell me about a time you handled conflicting priorities.",
		"Explain a complex idea you've taught to someone.",
	},
	"Travel": {
		"Describe your last trip and what surprised you most.",
		"Talk about a place you want to visit and why.",
	},
	"Presentation": {
		"Pitch a product in 60 seconds and explain the benefit.",
		"Describe your audience and the key takeaway you want.",
	},
}

// For returns the seed prompt for a goal, falling back to the Work
// English list for unknown goals.
func For(goal string) string {
	return listFor(goal)[0]
}

// Random picks any prompt for the goal.
func Random(goal string) string {
	list := listFor(goal)
	return list[rand.Intn(len(list))]
}

// Goals lists the known goal categories.
func Goals() []string {
	out := make([]string, 0, len(bank))
	for g := range bank {
		out = append(out, g)
	}
	return out
}

func listFor(goal string) []string {
	if list, ok := bank[goal]; ok {
		return list
	}
	return bank["Work English"]
}
