// Package memory holds what a conversational session remembers.
//
// Two tiers are managed by one Manager:
//   - Short-term: the in-process, chronologically ordered message history
//     that is sent to the provider on every turn. Lost when the Manager is
//     discarded.
//   - Long-term: an append-only JSON Lines log of completed turns, written
//     only while long-term mode is enabled and replayable across restarts
//     with LoadRecentHistory.
//
// Log format (one object per line):
//
//	{"timestamp":"2026-01-02T15:04:05.123Z","user":{"role":"user","content":"ping"},"assistant":{"role":"assistant","content":"pong"}}
//
// Lines are never rewritten. A torn or malformed line makes
// LoadRecentHistory return no history; it is never reported as an error.
package memory
