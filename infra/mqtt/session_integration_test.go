//go:build !no_containers

package mqtt_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremqtt "github.com/kilianp07/rainbarrel/core/mqtt"
	"github.com/kilianp07/rainbarrel/infra/logger"
	"github.com/kilianp07/rainbarrel/infra/mqtt"
	"github.com/kilianp07/rainbarrel/test/util"
)

// TestSessionWithMosquitto round-trips a command between two sessions through
// a real broker.
func TestSessionWithMosquitto(t *testing.T) {
	if !util.DockerAvailable() {
		t.Skip("docker not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	mosq, err := util.StartMosquitto(ctx)
	require.NoError(t, err)
	defer mosq.Close()
	broker := mosq.URL

	barrel, err := mqtt.NewSession(mqtt.Config{Broker: broker, ClientID: "barrel-pi", MaxRetries: 1, BackoffMS: 10}, logger.NopLogger{})
	require.NoError(t, err)
	got := make(chan string, 1)
	require.NoError(t, barrel.Subscribe("Den/Barrel/cmd", func(_ string, payload []byte) {
		got <- string(payload)
	}))
	ready := make(chan struct{}, 1)
	barrel.OnReady(func() { ready <- struct{}{} })
	require.NoError(t, barrel.Connect(ctx))
	defer barrel.Disconnect()
	<-ready

	plant, err := mqtt.NewSession(mqtt.Config{Broker: broker, ClientID: "plant-jasmine", MaxRetries: 1, BackoffMS: 10}, logger.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, plant.Connect(ctx))
	defer plant.Disconnect()

	require.NoError(t, plant.Publish("Den/Barrel/cmd", []byte(`{"water":3}`)))
	select {
	case msg := <-got:
		assert.JSONEq(t, `{"water":3}`, msg)
	case <-ctx.Done():
		t.Fatal("command not delivered")
	}
}

// TestSessionCertificateAuth connects over the mutual TLS listener with a
// client certificate and checks the broker refuses a client without one.
func TestSessionCertificateAuth(t *testing.T) {
	if !util.DockerAvailable() {
		t.Skip("docker not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	mosq, err := util.StartMosquitto(ctx, util.WithTLS("barrel-pi"))
	require.NoError(t, err)
	defer mosq.Close()
	certs := mosq.Certs

	barrel, err := mqtt.NewSession(mqtt.Config{
		Broker:     mosq.TLSURL,
		ClientID:   "barrel-pi",
		UseTLS:     true,
		AuthMethod: "certificate",
		ClientCert: certs.ClientCert,
		ClientKey:  certs.ClientKey,
		CABundle:   certs.CA,
		MaxRetries: 1,
		BackoffMS:  10,
	}, logger.NopLogger{})
	require.NoError(t, err)
	got := make(chan string, 1)
	require.NoError(t, barrel.Subscribe("Den/Barrel/cmd", func(_ string, payload []byte) {
		got <- string(payload)
	}))
	ready := make(chan struct{}, 1)
	barrel.OnReady(func() { ready <- struct{}{} })
	require.NoError(t, barrel.Connect(ctx))
	defer barrel.Disconnect()
	<-ready

	// commands published on the plain listener reach the TLS subscriber
	plant, err := mqtt.NewSession(mqtt.Config{Broker: mosq.URL, ClientID: "plant-jasmine", MaxRetries: 1, BackoffMS: 10}, logger.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, plant.Connect(ctx))
	defer plant.Disconnect()
	require.NoError(t, plant.Publish("Den/Barrel/cmd", []byte(`{"water":4}`)))
	select {
	case msg := <-got:
		assert.JSONEq(t, `{"water":4}`, msg)
	case <-ctx.Done():
		t.Fatal("command not delivered over TLS")
	}

	anonymous, err := mqtt.NewSession(mqtt.Config{
		Broker:                mosq.TLSURL,
		ClientID:              "intruder",
		UseTLS:                true,
		CABundle:              certs.CA,
		ConnectTimeoutSeconds: 3,
	}, logger.NopLogger{})
	require.NoError(t, err)
	defer anonymous.Disconnect()
	assert.ErrorIs(t, anonymous.Connect(ctx), coremqtt.ErrNotConnected)
}
