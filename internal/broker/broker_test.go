package broker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wildguard/core/model"
)

func recv(t *testing.T, sub *Subscription) model.Message {
	t.Helper()
	select {
	case m, ok := <-sub.C():
		if !ok {
			t.Fatalf("%s: inbox closed", sub.Name())
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: timeout waiting for message", sub.Name())
	}
	return model.Message{}
}

func msg(payload any) model.Message {
	return model.NewMessage("test", "", payload)
}

func TestPublishSubscribeOrder(t *testing.T) {
	b := New(Config{}, nil)
	defer b.Close()
	s1 := b.Subscribe("s1", "a", "b")
	s2 := b.Subscribe("s2", "a", "b")

	for i := 0; i < 100; i++ {
		topic := "a"
		if i%3 == 0 {
			topic = "b"
		}
		require.NoError(t, b.Publish(topic, msg(i)))
	}
	var last1, last2 uint64
	for i := 0; i < 100; i++ {
		m1, m2 := recv(t, s1), recv(t, s2)
		assert.Equal(t, i, m1.Payload)
		assert.Equal(t, m1.Seq, m2.Seq, "subscribers disagree on order")
		assert.Equal(t, m1.Topic, m2.Topic)
		assert.Greater(t, m1.Seq, last1)
		assert.Greater(t, m2.Seq, last2)
		last1, last2 = m1.Seq, m2.Seq
	}
}

func TestResumeAfter(t *testing.T) {
	b := New(Config{}, nil)
	defer b.Close()
	sub := b.Subscribe("s", "a")

	b.ResumeAfter(41)
	require.NoError(t, b.Publish("a", msg(1)))
	assert.Equal(t, uint64(42), recv(t, sub).Seq)

	b.ResumeAfter(10)
	require.NoError(t, b.Publish("a", msg(2)))
	assert.Equal(t, uint64(43), recv(t, sub).Seq)
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	b := New(Config{}, nil)
	defer b.Close()
	early := b.Subscribe("early", "t")
	require.NoError(t, b.Publish("t", msg("first")))
	late := b.Subscribe("late", "t")
	require.NoError(t, b.Publish("t", msg("second")))

	assert.Equal(t, "first", recv(t, early).Payload)
	assert.Equal(t, "second", recv(t, early).Payload)
	assert.Equal(t, "second", recv(t, late).Payload)
	select {
	case m := <-late.C():
		t.Fatalf("unexpected replay: %v", m.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWildcardReceivesEveryTopic(t *testing.T) {
	b := New(Config{}, nil)
	defer b.Close()
	all := b.Subscribe("log", model.TopicAll)
	both := b.Subscribe("both", model.TopicAll, "x")
	require.NoError(t, b.Publish("x", msg(1)))
	require.NoError(t, b.Publish("y", msg(2)))

	assert.Equal(t, "x", recv(t, all).Topic)
	assert.Equal(t, "y", recv(t, all).Topic)
	assert.Equal(t, uint64(1), recv(t, both).Seq, "no duplicate for overlapping topics")
	assert.Equal(t, uint64(2), recv(t, both).Seq)

	assert.Error(t, b.Publish(model.TopicAll, msg(3)))
	assert.Error(t, b.Publish("", msg(3)))
}

func TestSlowSubscriberIsolated(t *testing.T) {
	b := New(Config{InboxSize: 1, MaxRetries: 5, RetryBackoffMS: 10, MaxBackoffMS: 20}, nil)
	defer b.Close()
	stuck := b.Subscribe("stuck", "t")
	healthy := b.Subscribe("healthy", "t")

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish("t", msg(i)))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "publish blocked")

	for i := 0; i < 5; i++ {
		assert.Equal(t, i, recv(t, healthy).Payload)
	}

	select {
	case derr := <-b.Errors():
		assert.Equal(t, "stuck", derr.Subscriber)
		assert.Equal(t, "t", derr.Topic)
		assert.True(t, errors.Is(derr, ErrInboxFull))
		assert.Equal(t, uint64(2), derr.Seq)
		assert.Equal(t, 7, derr.Attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("expected delivery error")
	}
	assert.Equal(t, 0, recv(t, stuck).Payload)
}

func TestUnsubscribeKeepsQueuedMessages(t *testing.T) {
	b := New(Config{InboxSize: 1, MaxRetries: 200, RetryBackoffMS: 1, MaxBackoffMS: 5}, nil)
	defer b.Close()
	sub := b.Subscribe("s", "t")
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish("t", msg(i)))
	}
	b.Unsubscribe(sub)
	require.NoError(t, b.Publish("t", msg("after")))

	var got []any
	for m := range sub.C() {
		got = append(got, m.Payload)
	}
	assert.Equal(t, []any{0, 1, 2}, got)
}

func TestClose(t *testing.T) {
	b := New(Config{}, nil)
	sub := b.Subscribe("s", "t")
	b.Close()
	b.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.ErrorIs(t, b.Publish("t", msg(1)), ErrClosed)
	_, ok = <-b.Errors()
	assert.False(t, ok)

	late := b.Subscribe("late", "t")
	_, ok = <-late.C()
	assert.False(t, ok)
}

func TestDeliveryErrorMessage(t *testing.T) {
	e := DeliveryError{Subscriber: "station-A", Topic: "dispatch.bid_request", Seq: 7, Attempts: 3, Err: ErrInboxFull}
	assert.Equal(t, fmt.Sprintf("deliver dispatch.bid_request#7 to station-A after 3 attempts: %v", ErrInboxFull), e.Error())
}
