package bus

import (
	"sync"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestBusDeliversSignals(t *testing.T) {
	b := New()

	var mu sync.Mutex
	var got []Signal
	unsub := b.SubscribeSignals(func(s Signal) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})
	defer unsub()

	b.PublishSignal(Signal{DeviceID: "L1", State: "on"})
	b.PublishSignal(Signal{DeviceID: "G2", State: "off"})

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if got[0].DeviceID != "L1" || got[1].DeviceID != "G2" {
		t.Errorf("signals out of order: %+v", got)
	}
}

func TestBusSeparatesEventTypes(t *testing.T) {
	b := New()

	var mu sync.Mutex
	signals, states := 0, 0
	defer b.SubscribeSignals(func(Signal) {
		mu.Lock()
		signals++
		mu.Unlock()
	})()
	defer b.SubscribeStates(func(StateBroadcast) {
		mu.Lock()
		states++
		mu.Unlock()
	})()

	b.PublishState(StateBroadcast{DeviceID: "L1", State: "on", Source: SourcePoll})

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return states == 1
	})

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if signals != 0 {
		t.Errorf("signal handler called %d times for a state broadcast", signals)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	b := New()

	var mu sync.Mutex
	count := 0
	unsub := b.SubscribeStates(func(StateBroadcast) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.PublishState(StateBroadcast{DeviceID: "L1", State: "on"})
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	})

	unsub()
	b.PublishState(StateBroadcast{DeviceID: "L1", State: "off"})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("count = %d after unsubscribe, want 1", count)
	}
}

func TestEventTypes(t *testing.T) {
	if (Signal{}).Type() == (StateBroadcast{}).Type() {
		t.Error("Signal and StateBroadcast share a type id")
	}
}
