// Package events defines the controller events emitted on the event bus.
//
// Available event types:
//   - CommandEvent: outcome of one command entry, or a malformed payload
//   - ActuatorEvent: valve activation, retrigger, shutoff or rejection
//   - SampleEvent: result of one sampling tick
package events
