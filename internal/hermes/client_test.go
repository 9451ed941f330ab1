package hermes

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestConnectOptions(t *testing.T) {
	opts := nats.GetDefaultOptions()
	for _, o := range connectOptions(discardLogger()) {
		if err := o(&opts); err != nil {
			t.Fatalf("apply option: %v", err)
		}
	}

	if opts.Name != "godscore" {
		t.Errorf("expected client name godscore, got %q", opts.Name)
	}
	if !opts.RetryOnFailedConnect {
		t.Error("expected retry on failed connect")
	}
	if opts.MaxReconnect != 60 || opts.ReconnectWait != 2*time.Second {
		t.Errorf("unexpected reconnect policy %d / %s", opts.MaxReconnect, opts.ReconnectWait)
	}
	if opts.DisconnectedErrCB == nil || opts.ReconnectedCB == nil {
		t.Fatal("expected connection state handlers")
	}
	// Handlers log only; a nil error on a clean disconnect must not panic.
	opts.DisconnectedErrCB(nil, nil)
}

func TestStreamConfigCoversAllSubjects(t *testing.T) {
	cfg, err := streamConfig()
	if err != nil {
		t.Fatalf("stream config: %v", err)
	}
	if cfg.Name != StreamName {
		t.Errorf("expected stream %s, got %s", StreamName, cfg.Name)
	}
	if len(cfg.Subjects) != 1 || cfg.Subjects[0] != SubjectAll {
		t.Errorf("expected stream to capture %s, got %v", SubjectAll, cfg.Subjects)
	}
	if cfg.MaxAge != 30*24*time.Hour {
		t.Errorf("expected 30 day retention, got %s", cfg.MaxAge)
	}
}

func TestPublishRejectsUnencodablePayload(t *testing.T) {
	c := &NATSClient{logger: discardLogger()}
	if err := c.Publish(SubjectKAnonReport, make(chan int)); err == nil {
		t.Error("expected encode error before touching the connection")
	}
}
