// Package windowing bounds the conversation re-sent to the model on every
// step of a long run. Tool rounds are kept or dropped as a unit so every
// tool_result still follows its tool_use.
package windowing

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/spec-planner/internal/logger"
)

// Group is the span [Start, End) of a conversation that must be kept or
// dropped together.
type Group struct {
	Start int
	End   int
	// Round is set for an assistant tool_use message followed by the user
	// message answering every call in it.
	Round bool
}

// Groups splits msgs into atomic spans. An assistant message with tool_use
// blocks pairs with the next message when that is a user message whose
// leading tool_result blocks answer exactly those ids. Anything else is a
// span of one.
func Groups(msgs []anthropic.MessageParam) []Group {
	groups := make([]Group, 0, len(msgs))
	for i := 0; i < len(msgs); {
		if i+1 < len(msgs) && isRound(msgs[i], msgs[i+1]) {
			groups = append(groups, Group{Start: i, End: i + 2, Round: true})
			i += 2
			continue
		}
		groups = append(groups, Group{Start: i, End: i + 1})
		i++
	}
	return groups
}

func isRound(call, answer anthropic.MessageParam) bool {
	if call.Role != anthropic.MessageParamRoleAssistant || answer.Role != anthropic.MessageParamRoleUser {
		return false
	}
	used := map[string]bool{}
	for _, blk := range call.Content {
		if tu := blk.OfToolUse; tu != nil && tu.ID != "" {
			used[tu.ID] = true
		}
	}
	if len(used) == 0 {
		return false
	}

	answered := map[string]bool{}
	leading := true
	for _, blk := range answer.Content {
		tr := blk.OfToolResult
		if tr == nil {
			leading = false
			continue
		}
		if !leading || !used[tr.ToolUseID] {
			logger.Named("windowing").Debug("tool round not paired", "tool_use_id", tr.ToolUseID, "after_text", !leading)
			return false
		}
		answered[tr.ToolUseID] = true
	}
	return len(answered) == len(used)
}
