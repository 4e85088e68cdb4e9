package status

import (
	"errors"
	"testing"
)

func TestStore_InitialState(t *testing.T) {
	s := NewStore(nil)

	if got := s.Status(); got != Disconnected {
		t.Errorf("Status() = %q, want %q", got, Disconnected)
	}
	if err := s.LastError(); err != nil {
		t.Errorf("LastError() = %v, want nil", err)
	}
}

func TestStore_SetNotifiesSynchronously(t *testing.T) {
	s := NewStore(nil)

	var gotStatus Status
	var gotErr error
	calls := 0
	s.Watch(func(st Status, err error) {
		gotStatus = st
		gotErr = err
		calls++
	})

	wantErr := errors.New("dial refused")
	s.Set(Connecting, nil)
	s.Set(Disconnected, wantErr)

	// Observers fire synchronously, so no waiting is needed.
	if calls != 2 {
		t.Fatalf("observer called %d times, want 2", calls)
	}
	if gotStatus != Disconnected {
		t.Errorf("observed status = %q, want %q", gotStatus, Disconnected)
	}
	if gotErr != wantErr {
		t.Errorf("observed error = %v, want %v", gotErr, wantErr)
	}
}

func TestStore_SetClearsError(t *testing.T) {
	s := NewStore(nil)

	s.Set(Disconnected, errors.New("boom"))
	s.Set(Connected, nil)

	if err := s.LastError(); err != nil {
		t.Errorf("LastError() after successful connect = %v, want nil", err)
	}
}

func TestStore_WatchOrder(t *testing.T) {
	s := NewStore(nil)

	var order []int
	s.Watch(func(Status, error) { order = append(order, 1) })
	s.Watch(func(Status, error) { order = append(order, 2) })
	s.Watch(func(Status, error) { order = append(order, 3) })

	s.Set(Connecting, nil)

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("got %d notifications, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("notification %d went to observer %d, want %d", i, order[i], want[i])
		}
	}
}

func TestStore_UnwatchIdempotent(t *testing.T) {
	s := NewStore(nil)

	calls := 0
	remove := s.Watch(func(Status, error) { calls++ })

	remove()
	remove() // second call is a no-op

	s.Set(Connected, nil)

	if calls != 0 {
		t.Errorf("removed observer called %d times, want 0", calls)
	}
}
