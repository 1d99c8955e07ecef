// Package infra contains the adapters behind the core interfaces: the paho
// MQTT session, GPIO and simulated boards, the probe subprocess, metrics
// sinks and the Sentry monitor.
package infra
