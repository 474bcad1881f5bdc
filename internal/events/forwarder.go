// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/localekit/localekit/internal/models"
)

// Forwarder republishes bus events onto a watermill gochannel pub/sub so
// out-of-process style consumers (SSE streams, debug tooling) can
// subscribe by topic without registering synchronous listeners on the
// bus. Topics are the event type strings.
type Forwarder struct {
	pubsub *gochannel.GoChannel
	sub    Subscription
	bus    *Bus
	log    zerolog.Logger
}

// NewForwarder wires a forwarder to bus. Close it to detach.
func NewForwarder(bus *Bus, log zerolog.Logger) *Forwarder {
	f := &Forwarder{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, newWatermillLogger(log)),
		bus: bus,
		log: log,
	}
	f.sub = bus.AddEventListener(Wildcard, f.forward)
	return f
}

// forward serializes one bus event into a watermill message.
func (f *Forwarder) forward(evt models.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := message.NewMessage(evt.ID, payload)
	msg.Metadata.Set("event_type", string(evt.Type))
	return f.pubsub.Publish(string(evt.Type), msg)
}

// Subscribe returns a channel of messages for one event-type topic.
func (f *Forwarder) Subscribe(ctx context.Context, t string) (<-chan *message.Message, error) {
	return f.pubsub.Subscribe(ctx, t)
}

// Close detaches from the bus and shuts the pub/sub down.
func (f *Forwarder) Close() error {
	f.bus.RemoveEventListener(f.sub)
	return f.pubsub.Close()
}

// watermillLogger adapts zerolog to watermill.LoggerAdapter.
type watermillLogger struct {
	log zerolog.Logger
}

func newWatermillLogger(log zerolog.Logger) watermill.LoggerAdapter {
	return &watermillLogger{log: log}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(l.log.Error().Err(err), fields).Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(l.log.Info(), fields).Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(l.log.Debug(), fields).Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(l.log.Trace(), fields).Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := l.log.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &watermillLogger{log: ctx.Logger()}
}

func (l *watermillLogger) event(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
