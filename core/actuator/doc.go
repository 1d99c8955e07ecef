// Package actuator bounds how long the barrel valve stays open.
//
// Controller is a two-state machine (Idle, Active) holding at most one
// deadline timer. Activating while already Active stops the pending timer
// and arms a new one for the requested duration measured from now, so the
// valve always closes at a single well-defined time: the deadline of the
// most recent accepted activation.
package actuator
