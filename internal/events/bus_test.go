// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/schoolfin/syncd/internal/metrics"
	"github.com/schoolfin/syncd/internal/models"
)

func receive(t *testing.T, ch <-chan models.BroadcastEvent) models.BroadcastEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return models.BroadcastEvent{}
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifications, err := bus.Subscribe(ctx, models.TopicNotification)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	schools, err := bus.Subscribe(ctx, models.TopicSchoolManagement)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	before := testutil.ToFloat64(metrics.BroadcastEvents.WithLabelValues(models.TopicNotification))

	want := models.BroadcastEvent{
		Type:      "new_notification",
		ID:        "n-1",
		Data:      json.RawMessage(`{"title":"Liquidation report returned"}`),
		Timestamp: 1704067200000,
	}
	if err := bus.Publish(models.TopicNotification, want); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got := receive(t, notifications)
	if got.Type != want.Type || got.ID != want.ID || got.Timestamp != want.Timestamp {
		t.Errorf("event = %+v, want %+v", got, want)
	}
	if string(got.Data) != string(want.Data) {
		t.Errorf("data = %s, want %s", got.Data, want.Data)
	}

	select {
	case ev := <-schools:
		t.Errorf("school subscriber received %+v from another topic", ev)
	case <-time.After(50 * time.Millisecond):
	}

	if after := testutil.ToFloat64(metrics.BroadcastEvents.WithLabelValues(models.TopicNotification)); after != before+1 {
		t.Errorf("broadcast counter = %v, want %v", after, before+1)
	}
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(NewLoggerAdapter())
	defer bus.Close()

	if err := bus.Publish(models.TopicUserManagement, models.BroadcastEvent{Type: "created", ID: "1"}); err != nil {
		t.Errorf("Publish() with no subscribers = %v", err)
	}
}

func TestBus_PreservesOrder(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ch, err := bus.Subscribe(context.Background(), models.TopicUserManagement)
	if err != nil {
		t.Fatal(err)
	}

	for i := int64(1); i <= 20; i++ {
		if err := bus.Publish(models.TopicUserManagement, models.BroadcastEvent{Type: "updated", Timestamp: i}); err != nil {
			t.Fatal(err)
		}
	}
	for i := int64(1); i <= 20; i++ {
		if ev := receive(t, ch); ev.Timestamp != i {
			t.Fatalf("event %d has timestamp %d", i, ev.Timestamp)
		}
	}
}

func TestBus_SubscriptionEndsWithContext(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, models.TopicNotification)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription not closed after context cancel")
		}
	}
}

func TestBus_Closed(t *testing.T) {
	bus := NewBus(nil)
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if err := bus.Publish(models.TopicNotification, models.BroadcastEvent{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after Close = %v, want ErrClosed", err)
	}
	if _, err := bus.Subscribe(context.Background(), models.TopicNotification); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe() after Close = %v, want ErrClosed", err)
	}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	frames []models.RelayFrame
}

func (r *recordingBroadcaster) BroadcastFrame(frame models.RelayFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *recordingBroadcaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func TestForwarder_RelaysAllTopics(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	target := &recordingBroadcaster{}
	fwd := NewForwarder(bus, target)
	if fwd.String() != "event-forwarder" {
		t.Errorf("String() = %q", fwd.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fwd.Run(ctx) }()

	// Subscriptions are set up asynchronously; publish until the first frame lands.
	deadline := time.Now().Add(2 * time.Second)
	for target.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("forwarder never relayed")
		}
		_ = bus.Publish(models.TopicSessionLogout, models.BroadcastEvent{Type: "user_deactivated"})
		time.Sleep(10 * time.Millisecond)
	}

	for _, topic := range []string{models.TopicNotification, models.TopicUserManagement, models.TopicSchoolManagement} {
		if err := bus.Publish(topic, models.BroadcastEvent{Type: "x", ID: topic}); err != nil {
			t.Fatal(err)
		}
	}

	seen := func() map[string]bool {
		target.mu.Lock()
		defer target.mu.Unlock()
		m := map[string]bool{}
		for _, f := range target.frames {
			m[f.Topic] = true
		}
		return m
	}
	deadline = time.Now().Add(2 * time.Second)
	for len(seen()) < len(models.BroadcastTopics) {
		if time.Now().After(deadline) {
			t.Fatalf("topics relayed = %v", seen())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder did not stop")
	}
}
