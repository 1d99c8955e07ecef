package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"
)

// QoS keys.
const (
	QoSCommand   = "command"
	QoSTelemetry = "telemetry"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string          `json:"broker"`
	ClientID   string          `json:"client_id"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	UseTLS     bool            `json:"use_tls"`
	ClientCert string          `json:"client_cert"`
	ClientKey  string          `json:"client_key"`
	CABundle   string          `json:"ca_bundle"`
	AuthMethod string          `json:"auth_method"`
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	MaxRetries int             `json:"max_retries"`
	BackoffMS  int             `json:"backoff_ms"`
	// KeepAliveSeconds and PingTimeoutSeconds tune dead connection detection.
	KeepAliveSeconds      int         `json:"keep_alive_seconds"`
	PingTimeoutSeconds    int         `json:"ping_timeout_seconds"`
	// ConnectTimeoutSeconds bounds the wait for the first connection. Zero
	// waits until the broker answers or the agent is stopped.
	ConnectTimeoutSeconds int         `json:"connect_timeout_seconds"`
	TLSConfig             *tls.Config `json:"-"`
}

// SetDefaults fills unset fields. clientID is used when none is configured.
func (c *Config) SetDefaults(clientID string) {
	if c.Broker == "" {
		c.Broker = "tcp://localhost:1883"
	}
	if c.ClientID == "" {
		c.ClientID = clientID
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 100
	}
	if c.KeepAliveSeconds == 0 {
		c.KeepAliveSeconds = 60
	}
	if c.PingTimeoutSeconds == 0 {
		c.PingTimeoutSeconds = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return errors.New("mqtt.broker is required")
	}
	switch c.AuthMethod {
	case "", "username_password", "certificate", "both":
	default:
		return fmt.Errorf("mqtt.auth_method %q is not supported", c.AuthMethod)
	}
	if c.UseTLS && c.TLSConfig == nil && (c.ClientCert == "") != (c.ClientKey == "") {
		return errors.New("mqtt.client_cert and mqtt.client_key must be set together")
	}
	for k, q := range c.QoS {
		if q > 2 {
			return fmt.Errorf("mqtt.qos.%s must be 0, 1 or 2", k)
		}
	}
	if c.ConnectTimeoutSeconds < 0 {
		return errors.New("mqtt.connect_timeout_seconds must not be negative")
	}
	if c.MaxRetries < 0 || c.BackoffMS < 0 {
		return errors.New("mqtt retry settings must not be negative")
	}
	return nil
}

func (c Config) qos(key string) byte {
	if q, ok := c.QoS[key]; ok {
		return q
	}
	return 1
}

func (c Config) backoff() time.Duration {
	return time.Duration(c.BackoffMS) * time.Millisecond
}

// LoadTLSConfig loads the TLS configuration from the file paths in the
// config. The CA bundle is added to the system pool; the client certificate
// is optional.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.ClientCert != "" || c.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	if c.CABundle != "" {
		pool, _ := x509.SystemCertPool()
		if pool == nil {
			pool = x509.NewCertPool()
		}
		caBytes, err := os.ReadFile(c.CABundle)
		if err != nil {
			return nil, fmt.Errorf("read ca: %w", err)
		}
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("no certificates found in %s", c.CABundle)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}
