package progress

import (
	"fmt"
	"testing"
	"time"
)

func TestPublish_NoSubscribersDrops(t *testing.T) {
	b := NewBroadcaster()
	// Must return immediately with nobody listening.
	done := make(chan struct{})
	go func() {
		b.Publish("job-1", "hello")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}

func TestSubscribe_ReceivesInOrder(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	b.Publish("job-1", "first")
	b.Publish("job-1", "second")
	b.Publish("job-1", "third")

	for _, want := range []string{"first", "second", "third"} {
		ev := <-ch
		if ev.Message != want {
			t.Errorf("expected %q, got %q", want, ev.Message)
		}
		if ev.JobID != "job-1" {
			t.Errorf("expected job-1, got %q", ev.JobID)
		}
		if ev.Timestamp.IsZero() {
			t.Error("expected a timestamp")
		}
	}
}

func TestPublish_NoCrossJobDelivery(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	b.Publish("job-2", "not for you")

	select {
	case ev := <-ch:
		t.Errorf("received event for another job: %+v", ev)
	default:
	}
}

func TestPublish_FullQueueDropsOldest(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	// One more than the queue holds: the first event must be evicted.
	for i := 0; i <= subscriberBuffer; i++ {
		b.Publish("job-1", fmt.Sprintf("msg-%d", i))
	}

	ev := <-ch
	if ev.Message != "msg-1" {
		t.Errorf("expected oldest event dropped, first received %q", ev.Message)
	}

	// Drain and verify the newest made it.
	last := ev
	for {
		select {
		case next := <-ch:
			last = next
			continue
		default:
		}
		break
	}
	if want := fmt.Sprintf("msg-%d", subscriberBuffer); last.Message != want {
		t.Errorf("expected newest event %q retained, got %q", want, last.Message)
	}
}

func TestClose_EndsAllStreams(t *testing.T) {
	b := NewBroadcaster()
	ch1, cancel1 := b.Subscribe("job-1")
	ch2, cancel2 := b.Subscribe("job-1")
	defer cancel1()
	defer cancel2()

	b.Publish("job-1", "final")
	b.Close("job-1")

	for i, ch := range []<-chan Event{ch1, ch2} {
		if ev, ok := <-ch; !ok || ev.Message != "final" {
			t.Errorf("subscriber %d: expected final event, got %v ok=%v", i, ev, ok)
		}
		if _, ok := <-ch; ok {
			t.Errorf("subscriber %d: expected closed channel", i)
		}
	}

	if n := b.SubscriberCount("job-1"); n != 0 {
		t.Errorf("expected 0 subscribers after Close, got %d", n)
	}
}

func TestSubscribe_AfterCloseReturnsClosedChannel(t *testing.T) {
	b := NewBroadcaster()
	b.Close("job-1")

	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	if _, ok := <-ch; ok {
		t.Error("expected a closed channel for a terminal job")
	}
}

func TestCancel_Unsubscribes(t *testing.T) {
	b := NewBroadcaster()
	_, cancel := b.Subscribe("job-1")
	keep, cancelKeep := b.Subscribe("job-1")
	defer cancelKeep()

	cancel()
	cancel() // second call is a no-op

	if n := b.SubscriberCount("job-1"); n != 1 {
		t.Errorf("expected 1 subscriber after cancel, got %d", n)
	}

	b.Publish("job-1", "still delivered")
	if ev := <-keep; ev.Message != "still delivered" {
		t.Errorf("remaining subscriber missed event: %+v", ev)
	}
}

func TestPublish_AfterCloseDropped(t *testing.T) {
	b := NewBroadcaster()
	b.Close("job-1")
	// Must not panic or block.
	b.Publish("job-1", "too late")
}
