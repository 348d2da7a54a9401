package ops

import (
	"sort"
	"strings"
	"time"

	"todohub/internal/graph"
)

// minTokenCoverage is the share of reference words that must appear in a
// title for a partial match to qualify.
const minTokenCoverage = 0.5

// dueProximity is how close a task's due date must be to the reference due
// date before date proximity narrows an ambiguous match.
const dueProximity = 24 * time.Hour

// resolveReference matches a free-text task reference against the active
// task list. It returns every task tied at the best similarity, ordered
// most-recently-modified first. The caller decides what multiple matches
// mean; this function never picks a winner among equals.
//
// An exact title match does not outrank a containment match on purpose:
// when "Call Bob" and "Call Bob re: budget" are both present, the user must
// disambiguate, not the resolver.
func resolveReference(reference string, due *time.Time, tasks []graph.Task) []graph.Task {
	ref := normalize(reference)
	if ref == "" {
		return nil
	}
	refTokens := strings.Fields(ref)

	type scored struct {
		task  graph.Task
		score float64
	}

	var (
		best       float64
		candidates []scored
	)
	for _, task := range tasks {
		score := similarity(ref, refTokens, normalize(task.Title))
		if score < minTokenCoverage {
			continue
		}
		candidates = append(candidates, scored{task: task, score: score})
		if score > best {
			best = score
		}
	}

	var matches []graph.Task
	for _, c := range candidates {
		if c.score >= best {
			matches = append(matches, c.task)
		}
	}

	if len(matches) > 1 && due != nil {
		if narrowed := narrowByDueDate(matches, *due); len(narrowed) > 0 {
			matches = narrowed
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].LastModifiedDateTime.After(matches[j].LastModifiedDateTime)
	})

	return matches
}

// similarity scores a normalized reference against a normalized title.
// Exact equality and substring containment in either direction count as a
// full match; otherwise the score is the share of reference words present
// in the title.
func similarity(ref string, refTokens []string, title string) float64 {
	if title == "" {
		return 0
	}
	if ref == title || strings.Contains(title, ref) || strings.Contains(ref, title) {
		return 1
	}

	titleTokens := map[string]bool{}
	for _, tok := range strings.Fields(title) {
		titleTokens[tok] = true
	}

	matched := 0
	for _, tok := range refTokens {
		if titleTokens[tok] {
			matched++
		}
	}
	if len(refTokens) == 0 {
		return 0
	}
	return float64(matched) / float64(len(refTokens))
}

// narrowByDueDate keeps the tasks whose due date falls within the
// proximity window of the wanted date.
func narrowByDueDate(tasks []graph.Task, want time.Time) []graph.Task {
	var near []graph.Task
	for _, task := range tasks {
		if task.DueDateTime == nil {
			continue
		}
		due, err := task.DueDateTime.Time()
		if err != nil {
			continue
		}
		diff := due.Sub(want)
		if diff < 0 {
			diff = -diff
		}
		if diff <= dueProximity {
			near = append(near, task)
		}
	}
	return near
}

// normalize folds case, strips punctuation and collapses whitespace so
// title comparison sees only the words.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r > 127:
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
