// Package events defines the event types appended to the execution timeline
// and broadcast on the event bus.
package events

// Topic is the event bus topic carrying execution events.
const Topic = "outflow.execution.events"

const EventTypeMetadataKey = "event_type"
const ExecutionIDMetadataKey = "execution_id"

// Event types emitted by the engine. Ordering of events within one execution
// is the authoritative timeline used for replay.
const (
	NodeEnter                   = "node.enter"
	NodeTriggerSkipped          = "node.trigger.skipped"
	NodeTriggerMatched          = "node.trigger.matched"
	NodeConditionEvaluated      = "node.condition.evaluated"
	ExecutionStoppedByCondition = "execution.stopped_by_condition"
	NodeDelayCompleted          = "node.delay.completed"
	NodeActionExecuted          = "node.action.executed"
	ExecutionStarted            = "execution.started"
	ExecutionCompleted          = "execution.completed"
	ExecutionFailed             = "execution.failed"
)
