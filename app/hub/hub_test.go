package hub

import (
	"sync"
	"testing"
	"time"
)

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	h := New[string](1)
	if got := h.Publish("p-1", "snap"); got != 0 {
		t.Fatalf("expected no deliveries, got %d", got)
	}
	if topics, _ := h.Stats(); topics != 0 {
		t.Fatalf("expected publish not to create a topic, got %d", topics)
	}
}

func TestFanOutToConcurrentSubscribers(t *testing.T) {
	const n = 25
	h := New[string](1)

	subs := make([]*Subscription[string], n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			subs[i] = h.Subscribe("p-1")
		}(i)
	}
	wg.Wait()

	if got := h.Subscribers("p-1"); got != n {
		t.Fatalf("expected refcount %d, got %d", n, got)
	}
	if got := h.Publish("p-1", "snap"); got != n {
		t.Fatalf("expected %d deliveries, got %d", n, got)
	}

	for i, sub := range subs {
		select {
		case v := <-sub.C():
			if v != "snap" {
				t.Fatalf("subscriber %d got %q", i, v)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d got nothing", i)
		}
		select {
		case v := <-sub.C():
			t.Fatalf("subscriber %d got a second value %q", i, v)
		default:
		}
	}

	for _, sub := range subs {
		wg.Add(1)
		go func(sub *Subscription[string]) {
			defer wg.Done()
			h.Unsubscribe(sub)
		}(sub)
	}
	wg.Wait()

	if topics, subscribers := h.Stats(); topics != 0 || subscribers != 0 {
		t.Fatalf("expected empty hub, got topics=%d subscribers=%d", topics, subscribers)
	}
}

func TestUnsubscribeClosesOnlyThatStream(t *testing.T) {
	h := New[int](2)
	a := h.Subscribe("p-1")
	b := h.Subscribe("p-1")

	a.Close()
	a.Close()

	if _, ok := <-a.C(); ok {
		t.Fatal("expected closed stream for unsubscribed observer")
	}
	if got := h.Subscribers("p-1"); got != 1 {
		t.Fatalf("expected refcount 1, got %d", got)
	}
	if got := h.Publish("p-1", 7); got != 1 {
		t.Fatalf("expected one delivery, got %d", got)
	}
	if v := <-b.C(); v != 7 {
		t.Fatalf("unexpected value %d", v)
	}

	b.Close()
	if got := h.Subscribers("p-1"); got != 0 {
		t.Fatalf("expected topic to be discarded, got refcount %d", got)
	}
}

func TestNoHistoryForLateSubscriber(t *testing.T) {
	h := New[int](2)
	early := h.Subscribe("p-1")
	h.Publish("p-1", 1)

	late := h.Subscribe("p-1")
	select {
	case v := <-late.C():
		t.Fatalf("late subscriber received history %d", v)
	default:
	}
	if v := <-early.C(); v != 1 {
		t.Fatalf("unexpected value %d", v)
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	h := New[int](1)
	a := h.Subscribe("p-1")
	b := h.Subscribe("p-2")

	h.Publish("p-2", 2)
	select {
	case v := <-a.C():
		t.Fatalf("p-1 received p-2 value %d", v)
	default:
	}
	if v := <-b.C(); v != 2 {
		t.Fatalf("unexpected value %d", v)
	}
}

func TestFullBufferDoesNotBlockPublisher(t *testing.T) {
	h := New[int](1)
	sub := h.Subscribe("p-1")

	done := make(chan struct{})
	go func() {
		h.Publish("p-1", 1)
		h.Publish("p-1", 2)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	if v := <-sub.C(); v != 1 {
		t.Fatalf("unexpected value %d", v)
	}
	if got := h.Dropped(); got != 1 {
		t.Fatalf("expected 1 dropped snapshot, got %d", got)
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	h := New[int](1)
	sub := h.Subscribe("p-1")
	h.Close()

	if _, ok := <-sub.C(); ok {
		t.Fatal("expected closed stream after hub close")
	}
	after := h.Subscribe("p-1")
	if _, ok := <-after.C(); ok {
		t.Fatal("expected subscribe after close to return a closed stream")
	}
	after.Close()
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	h := New[int](4)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := h.Subscribe("p-1")
			sub.Close()
		}()
		go func(i int) {
			defer wg.Done()
			h.Publish("p-1", i)
		}(i)
	}
	wg.Wait()

	if topics, _ := h.Stats(); topics != 0 {
		t.Fatalf("expected empty hub, got %d topics", topics)
	}
}
