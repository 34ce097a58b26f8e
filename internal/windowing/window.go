package windowing

import (
	"github.com/anthropics/anthropic-sdk-go"
)

type Stats struct {
	// Total is the estimated cost of the returned window.
	Total   int
	Budget  int
	Dropped int // messages left out
	// OverBudget is set when the window still exceeds Budget, which happens
	// when the pinned message and the newest group alone do not fit.
	OverBudget bool
}

// Trim returns the messages to send for a conversation whose first message
// is the task. The first message and the newest group are always kept; older
// groups are added newest first while the total stays within budget. The
// message after the pinned one is never a user message unless nothing older
// is left to include. A budget <= 0 disables trimming.
func Trim(msgs []anthropic.MessageParam, budget int, c Counter) ([]anthropic.MessageParam, Stats) {
	if budget <= 0 || len(msgs) <= 2 {
		return msgs, Stats{Total: countAll(c, msgs), Budget: budget}
	}

	groups := Groups(msgs[1:])
	for i := range groups {
		groups[i].Start++
		groups[i].End++
	}

	total := c.Count(msgs[0])
	first := len(groups) - 1
	total += countSpan(c, msgs, groups[first])
	for first > 0 {
		cost := countSpan(c, msgs, groups[first-1])
		if total+cost > budget {
			break
		}
		total += cost
		first--
	}
	// Keep roles alternating after the pinned user message.
	for first > 0 && msgs[groups[first].Start].Role == anthropic.MessageParamRoleUser {
		first--
		total += countSpan(c, msgs, groups[first])
	}

	start := groups[first].Start
	if start == 1 {
		return msgs, Stats{Total: total, Budget: budget, OverBudget: total > budget}
	}
	window := make([]anthropic.MessageParam, 0, len(msgs)-start+1)
	window = append(window, msgs[0])
	window = append(window, msgs[start:]...)
	return window, Stats{Total: total, Budget: budget, Dropped: start - 1, OverBudget: total > budget}
}

func countAll(c Counter, msgs []anthropic.MessageParam) int {
	n := 0
	for _, m := range msgs {
		n += c.Count(m)
	}
	return n
}
