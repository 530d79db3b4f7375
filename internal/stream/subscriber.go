// Package stream connects to a push endpoint and hands every message to a
// notifier.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/tmaxmax/go-sse"

	"github.com/binarykitchen/noodlenotify/internal/config"
	"github.com/binarykitchen/noodlenotify/internal/notify"
)

// messageType is the explicit name of the default SSE event.
const messageType = "message"

type Subscriber struct {
	url      string
	greeting string
	notifier notify.Notifier
	client   *sse.Client
	log      zerolog.Logger
}

func NewSubscriber(cfg config.ListenConfig, notifier notify.Notifier, log zerolog.Logger) *Subscriber {
	backoff := sse.DefaultClient.Backoff
	if cfg.Backoff.InitialInterval > 0 {
		backoff.InitialInterval = cfg.Backoff.InitialInterval
	}
	if cfg.Backoff.MaxInterval > 0 {
		backoff.MaxInterval = cfg.Backoff.MaxInterval
	}

	return &Subscriber{
		url:      cfg.URL,
		greeting: cfg.Greeting,
		notifier: notifier,
		client: &sse.Client{
			HTTPClient:        &http.Client{},
			ResponseValidator: sse.DefaultValidator,
			Backoff:           backoff,
		},
		log: log,
	}
}

// Run shows the greeting, then notifies every default message received from
// the push endpoint until ctx is cancelled. Reconnects are left to the SSE
// client.
func (s *Subscriber) Run(ctx context.Context) error {
	if err := s.notifier.Notify(ctx, s.greeting); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to show greeting: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	conn := s.client.NewConnection(req)
	unsubscribe := conn.SubscribeToAll(s.handle(ctx))
	defer unsubscribe()

	s.log.Info().Str("url", s.url).Msg("subscribed to push endpoint")

	err = conn.Connect()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("push stream closed: %w", err)
	}
	return nil
}

func (s *Subscriber) handle(ctx context.Context) sse.EventCallback {
	return func(ev sse.Event) {
		// Unnamed events and events explicitly named "message" are both
		// default messages; everything else has no listener.
		if ev.Type != "" && ev.Type != messageType {
			s.log.Debug().Str("type", ev.Type).Msg("ignoring event")
			return
		}
		// Frames without data (retry: or id: only) are not messages. The
		// client reports them with empty Data, the same as "data:" alone.
		if ev.Data == "" {
			return
		}
		s.log.Debug().Str("id", ev.LastEventID).Int("bytes", len(ev.Data)).Msg("message received")
		if err := s.notifier.Notify(ctx, ev.Data); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("failed to show notification")
		}
	}
}
