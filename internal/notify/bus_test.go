package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ocx/agentbus/internal/notify"
)

func TestNotifyVerdictPublishesToAllSubscribers(t *testing.T) {
	b := notify.NewBus("agentbus-test")
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.NotifyVerdict(context.Background(), "bus-1", 42, true, "sticky")

	select {
	case event := <-ch:
		require.Equal(t, notify.TypeVerdictCommit, event.Type)
		require.Equal(t, "bus-1", event.BusID)
		require.Equal(t, uint64(42), event.Data["intention_id"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestNotifyVerdictAbortUsesAbortType(t *testing.T) {
	b := notify.NewBus("agentbus-test")
	ch := b.Subscribe(notify.TypeVerdictAbort)
	defer b.Unsubscribe(ch)

	b.NotifyVerdict(context.Background(), "bus-1", 7, false, "never voted")

	select {
	case event := <-ch:
		require.Equal(t, notify.TypeVerdictAbort, event.Type)
		require.Equal(t, false, event.Data["commit"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeFiltersByType(t *testing.T) {
	b := notify.NewBus("agentbus-test")
	commits := b.Subscribe(notify.TypeVerdictCommit)
	defer b.Unsubscribe(commits)

	b.NotifyVerdict(context.Background(), "bus-1", 1, false, "no votes")

	select {
	case <-commits:
		t.Fatal("abort event delivered to commit-only subscriber")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := notify.NewBus("agentbus-test")
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	b.NotifyVerdict(context.Background(), "bus-1", 1, true, "ok")

	_, open := <-ch
	require.False(t, open)
}

func TestSubscriberCountReflectsSubscriptions(t *testing.T) {
	b := notify.NewBus("agentbus-test")
	require.Equal(t, 0, b.SubscriberCount())

	all := b.Subscribe()
	typed := b.Subscribe(notify.TypeVerdictCommit)
	require.Equal(t, 2, b.SubscriberCount())

	b.Unsubscribe(all)
	b.Unsubscribe(typed)
	require.Equal(t, 0, b.SubscriberCount())
}

func TestFullSubscriberBufferDropsRatherThanBlocks(t *testing.T) {
	b := notify.NewBus("agentbus-test")
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < 200; i++ {
		b.NotifyVerdict(context.Background(), "bus-1", uint64(i), true, "ok")
	}
}
