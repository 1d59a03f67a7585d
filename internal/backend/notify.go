package backend

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// GeneratedNotice is emitted by the backend once a requested queue
// generation for a date has materialized.
type GeneratedNotice struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type notifyEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Notifier consumes the backend's asynchronous notification channel and
// fans the generation-complete events into Notices.
type Notifier struct {
	url     string
	Notices chan GeneratedNotice
}

// NewNotifier creates a notifier for the given websocket URL.
func NewNotifier(url string) *Notifier {
	return &Notifier{
		url:     url,
		Notices: make(chan GeneratedNotice, 16),
	}
}

// Run dials the backend notification channel and keeps reading until the
// context is cancelled, reconnecting with a flat backoff on any failure.
func (n *Notifier) Run(ctx context.Context) {
	const reconnectDelay = 5 * time.Second

	for {
		if err := n.consume(ctx); err != nil {
			log.Warn().Err(err).Str("url", n.url).Msg("Notification channel dropped")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (n *Notifier) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, n.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info().Str("url", n.url).Msg("Connected to backend notification channel")

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env notifyEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Msg("Undecodable backend notification")
			continue
		}
		if env.Type != "planned.generated" {
			continue
		}
		var notice GeneratedNotice
		if err := json.Unmarshal(env.Data, &notice); err != nil {
			log.Warn().Err(err).Msg("Undecodable generation notice")
			continue
		}
		select {
		case n.Notices <- notice:
		default:
			// A slow consumer only ever needs the latest notice per date;
			// dropping is safe because the grace re-poll still runs.
			log.Warn().Str("date", notice.Date).Msg("Dropped generation notice, consumer busy")
		}
	}
}
