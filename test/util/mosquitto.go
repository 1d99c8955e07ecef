package util

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	plainPort = "1883/tcp"
	tlsPort   = "8883/tcp"
	certsDir  = "/mosquitto/certs"
)

// Broker is a running Mosquitto container.
type Broker struct {
	// URL is the anonymous plain listener.
	URL string
	// TLSURL is the mutual TLS listener, empty unless WithTLS was given.
	TLSURL string
	// Certs are the files the TLS listener trusts and presents.
	Certs *CertBundle

	cont tc.Container
	dir  string
}

// Close terminates the container and removes its generated files.
func (b *Broker) Close() {
	if b.cont != nil {
		_ = b.cont.Terminate(context.Background())
	}
	_ = os.RemoveAll(b.dir)
}

type brokerOptions struct {
	tls      bool
	clientCN string
}

// BrokerOption configures StartMosquitto.
type BrokerOption func(*brokerOptions)

// WithTLS adds a listener that requires a client certificate signed by the
// generated CA and maps its common name to the MQTT username.
func WithTLS(clientCN string) BrokerOption {
	return func(o *brokerOptions) {
		o.tls = true
		o.clientCN = clientCN
	}
}

const plainConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
log_type notice
connection_messages true
`

const tlsConf = `
listener 8883
cafile /mosquitto/certs/ca.pem
certfile /mosquitto/certs/server.pem
keyfile /mosquitto/certs/server-key.pem
require_certificate true
use_identity_as_username true
tls_version tlsv1.2
`

// StartMosquitto launches a temporary Mosquitto broker inside a Docker
// container and waits until it accepts MQTT connections.
func StartMosquitto(ctx context.Context, opts ...BrokerOption) (*Broker, error) {
	var o brokerOptions
	for _, opt := range opts {
		opt(&o)
	}

	dir, err := os.MkdirTemp("", "mosq")
	if err != nil {
		return nil, err
	}
	b := &Broker{dir: dir}

	conf := plainConf
	ports := []string{plainPort}
	waits := []wait.Strategy{wait.ForListeningPort(plainPort)}
	if o.tls {
		certs, err := NewCertBundle(dir, o.clientCN, dockerHost())
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("generate certificates: %w", err)
		}
		b.Certs = certs
		conf += tlsConf
		ports = append(ports, tlsPort)
		waits = append(waits, wait.ForListeningPort(tlsPort))
	}
	confPath := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(confPath, []byte(conf), 0o644); err != nil {
		b.Close()
		return nil, err
	}

	files := []tc.ContainerFile{{
		HostFilePath:      confPath,
		ContainerFilePath: "/mosquitto/config/mosquitto.conf",
		FileMode:          0o644,
	}}
	if b.Certs != nil {
		for _, p := range []string{b.Certs.CA, b.Certs.ServerCert, b.Certs.ServerKey} {
			files = append(files, tc.ContainerFile{
				HostFilePath:      p,
				ContainerFilePath: certsDir + "/" + filepath.Base(p),
				FileMode:          0o644,
			})
		}
	}

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: ports,
		WaitingFor:   wait.ForAll(waits...),
		Files:        files,
	}
	b.cont, err = tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		b.Close()
		return nil, err
	}

	host, err := b.cont.Host(ctx)
	if err != nil {
		b.Close()
		return nil, err
	}
	port, err := b.cont.MappedPort(ctx, plainPort)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.URL = fmt.Sprintf("tcp://%s:%s", host, port.Port())
	if b.Certs != nil {
		port, err := b.cont.MappedPort(ctx, tlsPort)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.TLSURL = fmt.Sprintf("ssl://%s:%s", host, port.Port())
	}

	waitCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := waitForMQTTReady(waitCtx, b.URL); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// dockerHost returns the host part of DOCKER_HOST for tcp daemons so the
// broker certificate covers the address tests dial.
func dockerHost() string {
	v := os.Getenv("DOCKER_HOST")
	if v == "" || strings.HasPrefix(v, "unix://") || strings.HasPrefix(v, "npipe://") {
		return ""
	}
	u, err := url.Parse(v)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func waitForMQTTReady(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("readiness-check").SetConnectTimeout(time.Second)
	var lastErr error
	for {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if lastErr = token.Error(); lastErr == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), lastErr)
		case <-time.After(pollInterval):
		}
	}
}
