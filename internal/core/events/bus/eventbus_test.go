package bus

import (
	"errors"
	"testing"
)

type testObserver struct {
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(_ string, _ Event) {
	o.publishCount++
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ int64) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got Event
	_, err := b.Subscribe("movement.arrived", func(e Event) error {
		got = e
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err = b.Publish(NewEvent("movement.arrived", "vessel-1", 123)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got == nil {
		t.Fatal("handler not called")
	}
	if got.Source() != "vessel-1" || got.Data().(int) != 123 {
		t.Fatalf("unexpected event: %+v", got)
	}
	if got.Timestamp().IsZero() {
		t.Fatal("event not timestamped")
	}
}

func TestSubscribeValidation(t *testing.T) {
	b := New()
	if _, err := b.Subscribe("x", nil); !errors.Is(err, ErrNilHandler) {
		t.Fatalf("expected ErrNilHandler, got %v", err)
	}
	if _, err := b.Subscribe("", func(Event) error { return nil }); !errors.Is(err, ErrEmptyEventType) {
		t.Fatalf("expected ErrEmptyEventType, got %v", err)
	}
	if err := b.Publish(nil); !errors.Is(err, ErrNilEvent) {
		t.Fatalf("expected ErrNilEvent, got %v", err)
	}
}

func TestPublishJoinsHandlerErrors(t *testing.T) {
	b := New()
	e1 := errors.New("first")
	e2 := errors.New("second")
	_, _ = b.Subscribe("x", func(Event) error { return e1 })
	_, _ = b.Subscribe("x", func(Event) error { return e2 })

	err := b.Publish(NewEvent("x", "src", nil))
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Fatalf("expected both errors joined, got %v", err)
	}
}

func TestSubscribeAll(t *testing.T) {
	b := New()
	var types []string
	_, _ = b.SubscribeAll(func(e Event) error {
		types = append(types, e.Type())
		return nil
	})
	_ = b.Publish(NewEvent("a", "src", nil))
	_ = b.Publish(NewEvent("b", "src", nil))
	if len(types) != 2 || types[0] != "a" || types[1] != "b" {
		t.Fatalf("unexpected wildcard deliveries: %v", types)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	sub, _ := b.Subscribe("x", func(Event) error { calls++; return nil })
	_ = b.Publish(NewEvent("x", "src", nil))
	if err := b.Unsubscribe(sub); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if sub.IsActive() {
		t.Fatal("subscription still active")
	}
	// second cancel is a no-op
	_ = sub.Cancel()
	_ = b.Unsubscribe(nil)
	_ = b.Publish(NewEvent("x", "src", nil))
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestObserverMetricsOptional(t *testing.T) {
	b := New()
	_, _ = b.Subscribe("e", func(e Event) error { return nil })
	_ = b.Publish(NewEvent("e", "s", nil))
	if m := b.GetMetrics(); m.Published != 0 || m.DeliveredHandlers != 0 {
		t.Fatalf("metrics should be zero without observers: %+v", m)
	}

	obs := &testObserver{}
	b.AddObserver(obs)
	_ = b.Publish(NewEvent("e", "s", nil))
	m := b.GetMetrics()
	if m.Published != 1 || m.DeliveredHandlers != 1 || m.SubscribersActive != 1 {
		t.Fatalf("metrics should update with observer: %+v", m)
	}
	if obs.publishCount != 1 || obs.deliveredCount != 1 {
		t.Fatalf("observer not notified: %+v", obs)
	}

	failure := errors.New("handler failed")
	_, _ = b.Subscribe("bad", func(Event) error { return failure })
	_ = b.Publish(NewEvent("bad", "s", nil))
	if m = b.GetMetrics(); m.Errors != 1 || !errors.Is(obs.lastErr, failure) {
		t.Fatalf("failed delivery not recorded: %+v %v", m, obs.lastErr)
	}

	b.RemoveObserver(obs)
	_ = b.Publish(NewEvent("e", "s", nil))
	if obs.publishCount != 1 {
		t.Fatal("removed observer still notified")
	}
}
