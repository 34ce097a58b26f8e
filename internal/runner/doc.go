// Package runner drives one planning run against an agent service.
//
// Flow:
//
//	thread <- user(spec) ; run -> poll -> requires_action -> tool outputs -> poll ... -> terminal
//
// Invariants:
//   - every tool call id seen in a requires_action batch is answered at most
//     once, and with the reject policy exactly once, before the next poll.
//   - all outputs of a batch are submitted together; tool handlers run one at
//     a time in the order the agent listed them.
package runner
