// Package events publishes run summaries over NATS so other tooling can
// react to assembly re-resolutions without polling. The publisher is
// optional: daemon mode wires it only when configured.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bonzini/db4sphinx/internal/config"
)

// RunEvent is the payload published after each assembly resolution.
type RunEvent struct {
	RunID       string    `json:"run_id"`
	Manifest    string    `json:"manifest"`
	Timestamp   time.Time `json:"timestamp"`
	Documents   int       `json:"documents"`
	Resolved    int       `json:"xrefs_resolved"`
	Unresolved  int       `json:"xrefs_unresolved"`
	Diagnostics int       `json:"diagnostics"`
	Failed      bool      `json:"failed"`
}

// Publisher sends run events to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher connects to the configured NATS server.
func NewPublisher(cfg config.EventsConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("event publishing is disabled")
	}
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("db4sphinx"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Publisher{conn: conn, subject: cfg.Subject}, nil
}

// Publish sends one run event. Publish failures are logged, not fatal;
// event delivery is advisory.
func (p *Publisher) Publish(ev RunEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal run event", "error", err)
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		slog.Warn("failed to publish run event", "subject", p.subject, "error", err)
	}
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
