package windowing

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
)

// Counter estimates the input cost of a message.
type Counter interface {
	Count(m anthropic.MessageParam) int
}

// blockOverhead is added once per content block.
const blockOverhead = 4

// HeuristicCounter counts runes of text, tool_result content and tool_use
// input JSON, plus a fixed overhead per block. It is deterministic and
// needs no API call.
type HeuristicCounter struct{}

func (HeuristicCounter) Count(m anthropic.MessageParam) int {
	total := 0
	for _, blk := range m.Content {
		total += blockOverhead
		switch {
		case blk.OfText != nil:
			total += utf8.RuneCountInString(blk.OfText.Text)
		case blk.OfToolUse != nil:
			if b, err := json.Marshal(blk.OfToolUse.Input); err == nil {
				total += utf8.RuneCount(b)
			}
		case blk.OfToolResult != nil:
			for _, c := range blk.OfToolResult.Content {
				if c.OfText != nil {
					total += utf8.RuneCountInString(c.OfText.Text)
				}
			}
		}
	}
	return total
}

func countSpan(c Counter, msgs []anthropic.MessageParam, g Group) int {
	n := 0
	for _, m := range msgs[g.Start:g.End] {
		n += c.Count(m)
	}
	return n
}
