package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremon "github.com/kilianp07/rainbarrel/core/monitoring"
	coremqtt "github.com/kilianp07/rainbarrel/core/mqtt"
	"github.com/kilianp07/rainbarrel/infra/logger"
)

// pahoClient is the subset of paho.Client used by Session.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Session is a long-lived broker connection. Subscriptions are replayed and
// ready callbacks run after every successful (re)connect.
type Session struct {
	cli pahoClient
	cfg Config
	log logger.Logger

	mu    sync.Mutex
	subs  map[string]coremqtt.Handler
	order []string
	ready []func()
}

var _ coremqtt.Session = (*Session)(nil)

// NewSession builds the client. It does not connect.
func NewSession(cfg Config, log logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.New("mqtt")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "rainbarrel-" + uuid.NewString()[:8]
	}
	bindPahoLoggers(log)
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	s := &Session{cfg: cfg, log: log, subs: make(map[string]coremqtt.Handler)}
	opts.OnConnect = s.onConnect
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	s.cli = newMQTTClient(opts)
	return s, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.SetConnectRetry(true)
	if cfg.KeepAliveSeconds > 0 {
		opts.SetKeepAlive(time.Duration(cfg.KeepAliveSeconds) * time.Second)
	}
	if cfg.PingTimeoutSeconds > 0 {
		opts.SetPingTimeout(time.Duration(cfg.PingTimeoutSeconds) * time.Second)
	}
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// OnReady registers f to run after every successful connect, once
// subscriptions are in place.
func (s *Session) OnReady(f func()) {
	s.mu.Lock()
	s.ready = append(s.ready, f)
	s.mu.Unlock()
}

// Connect dials the broker and waits for the first connection. With
// connect retry enabled paho keeps trying in the background; Connect waits
// until ctx is done or, when ConnectTimeoutSeconds is positive, until that
// timeout elapses.
func (s *Session) Connect(ctx context.Context) error {
	s.log.Infof("connecting to %s as %s", s.cfg.Broker, s.cfg.ClientID)
	token := s.cli.Connect()
	var expired <-chan time.Time
	timeout := time.Duration(s.cfg.ConnectTimeoutSeconds) * time.Second
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	case <-expired:
		return fmt.Errorf("mqtt connect: %w after %s", coremqtt.ErrNotConnected, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if !s.cli.IsConnected() {
		return fmt.Errorf("mqtt connect: %w", coremqtt.ErrNotConnected)
	}
	return nil
}

// Subscribe registers h for topic. When connected the subscription is made
// immediately; it is (re)made on every connect in any case.
func (s *Session) Subscribe(topic string, h coremqtt.Handler) error {
	s.mu.Lock()
	if _, ok := s.subs[topic]; !ok {
		s.order = append(s.order, topic)
	}
	s.subs[topic] = h
	s.mu.Unlock()
	if !s.cli.IsConnected() {
		return nil
	}
	return s.subscribe(s.cli, topic, h)
}

func (s *Session) subscribe(c pahoClient, topic string, h coremqtt.Handler) error {
	token := c.Subscribe(topic, s.cfg.qos(QoSCommand), s.wrap(h))
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe failed for topic '%s': %w", topic, err)
	}
	s.log.Infof("subscribed to '%s'", topic)
	return nil
}

func (s *Session) wrap(h coremqtt.Handler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("message handler panic on %s: %v", msg.Topic(), r)
				s.log.Errorf("%v", err)
				coremon.CaptureException(err, map[string]string{"module": "mqtt", "topic": msg.Topic()})
			}
		}()
		h(msg.Topic(), msg.Payload())
	}
}

func (s *Session) onConnect(c paho.Client) {
	s.log.Infof("MQTT connected")
	s.mu.Lock()
	topics := append([]string(nil), s.order...)
	handlers := make([]coremqtt.Handler, len(topics))
	for i, t := range topics {
		handlers[i] = s.subs[t]
	}
	ready := append([]func(){}, s.ready...)
	s.mu.Unlock()

	for i, t := range topics {
		if err := s.subscribe(c, t, handlers[i]); err != nil {
			s.log.Errorf("%v", err)
		}
	}
	for _, f := range ready {
		f()
	}
}

// Publish sends payload to topic, retrying with exponential backoff.
func (s *Session) Publish(topic string, payload []byte) error {
	if !s.cli.IsConnected() {
		return coremqtt.ErrNotConnected
	}
	qos := s.cfg.qos(QoSTelemetry)
	backoff := s.cfg.backoff()
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	var publishErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		token := s.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			s.log.Debugw("published", map[string]any{"topic": topic, "bytes": len(payload)})
			return nil
		}
		s.log.Warnf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt < s.cfg.MaxRetries {
			time.Sleep(backoff * time.Duration(1<<attempt))
		}
	}
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Disconnect gracefully closes the MQTT connection.
func (s *Session) Disconnect() {
	if s.cli != nil && s.cli.IsConnected() {
		s.cli.Disconnect(250)
	}
}

// pahoLogger adapts a component logger to paho's Println/Printf logger.
type pahoLogger struct {
	logf func(format string, args ...any)
}

func (l pahoLogger) Println(v ...interface{}) { l.logf("%s", fmt.Sprintln(v...)) }
func (l pahoLogger) Printf(format string, v ...interface{}) {
	l.logf(format, v...)
}

var bindOnce sync.Once

func bindPahoLoggers(log logger.Logger) {
	bindOnce.Do(func() {
		paho.ERROR = pahoLogger{log.Errorf}
		paho.CRITICAL = pahoLogger{log.Errorf}
		paho.WARN = pahoLogger{log.Warnf}
	})
}
