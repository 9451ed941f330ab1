package hermes

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rotisserie/eris"
)

const (
	clientName     = "godscore"
	maxReconnects  = 60
	reconnectDelay = 2 * time.Second
)

type Client interface {
	Publish(subject string, data interface{}) error
	Subscribe(subject string, handler func(subject string, data []byte)) error
	Close()
}

type NATSClient struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	subs   []*nats.Subscription
	logger *slog.Logger
}

// NewNATSClient connects to url and makes sure the GODSCORE_EVENTS stream
// captures every godscore subject. A stream setup failure is logged, not
// returned: plain publishes still reach live subscribers.
func NewNATSClient(ctx context.Context, url string, logger *slog.Logger) (*NATSClient, error) {
	nc, err := nats.Connect(url, connectOptions(logger)...)
	if err != nil {
		return nil, eris.Wrapf(err, "hermes: connect %s", url)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, eris.Wrap(err, "hermes: jetstream")
	}

	c := &NATSClient{conn: nc, js: js, logger: logger}
	if err := c.ensureStream(ctx); err != nil {
		logger.Warn("failed to ensure stream", "stream", StreamName, "error", err)
	}
	return c, nil
}

// connectOptions keeps retrying while the broker is down at startup so the
// service can boot before NATS does.
func connectOptions(logger *slog.Logger) []nats.Option {
	return []nats.Option{
		nats.Name(clientName),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectDelay),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
}

func streamConfig() (jetstream.StreamConfig, error) {
	maxAge, err := time.ParseDuration(StreamMaxAge)
	if err != nil {
		return jetstream.StreamConfig{}, eris.Wrapf(err, "hermes: stream max age %q", StreamMaxAge)
	}
	return jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectAll},
		MaxAge:   maxAge,
	}, nil
}

func (c *NATSClient) ensureStream(ctx context.Context) error {
	cfg, err := streamConfig()
	if err != nil {
		return err
	}
	if _, err := c.js.CreateOrUpdateStream(ctx, cfg); err != nil {
		return eris.Wrapf(err, "hermes: ensure stream %s", cfg.Name)
	}
	return nil
}

func (c *NATSClient) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return eris.Wrapf(err, "hermes: encode %s", subject)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return eris.Wrapf(err, "hermes: publish %s", subject)
	}
	return nil
}

func (c *NATSClient) Subscribe(subject string, handler func(string, []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return eris.Wrapf(err, "hermes: subscribe %s", subject)
	}
	c.subs = append(c.subs, sub)
	return nil
}

func (c *NATSClient) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	_ = c.conn.Drain()
}

var _ Client = (*NATSClient)(nil)
