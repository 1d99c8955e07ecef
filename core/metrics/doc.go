// Package metrics defines the sinks that record agent activity: inbound
// commands, valve transitions and sampling ticks. Sinks like PromSink and
// InfluxSink live in infra/metrics and register themselves with the factory
// so they can be selected from configuration; several sinks are combined
// with a MultiSink automatically.
package metrics
