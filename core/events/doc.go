// Package events defines the optimization events emitted on the event bus.
//
// Available event types:
//   - StageEvent: a pipeline stage started, completed, failed or was replaced by a fallback
//   - RunEvent: an optimization call finished
package events
