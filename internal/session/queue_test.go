package session

import "testing"

func TestOutboundQueuePushPopOrder(t *testing.T) {
	q := NewOutboundQueue()
	q.Push([]byte("a"))
	q.Push([]byte("b"))
	q.Push([]byte("c"))

	if got := q.Depth(); got != 3 {
		t.Fatalf("depth = %d, want 3", got)
	}

	ch := q.Pop()
	for _, want := range []string{"a", "b", "c"} {
		if got := string(<-ch); got != want {
			t.Fatalf("pop = %q, want %q", got, want)
		}
	}
	if got := q.Depth(); got != 0 {
		t.Fatalf("depth after drain = %d, want 0", got)
	}
}

func TestOutboundQueueDrainAndCancelDiscardsQueued(t *testing.T) {
	q := NewOutboundQueue()
	q.Push([]byte("stale1"))
	q.Push([]byte("stale2"))

	staleCh := q.Pop()

	q.DrainAndCancel()

	if got := q.Depth(); got != 0 {
		t.Fatalf("depth after drain = %d, want 0", got)
	}

	// The drain installs a fresh channel; a reference taken before the drain
	// still points at the abandoned one, which keeps its pre-drain frames.
	staleCh2 := q.Pop()
	if staleCh == staleCh2 {
		t.Fatalf("DrainAndCancel did not install a fresh channel")
	}

	select {
	case v := <-staleCh:
		if string(v) != "stale1" {
			t.Fatalf("unexpected value on stale channel: %q", v)
		}
	default:
		t.Fatalf("expected stale channel to still hold pre-drain frames")
	}

	q.Push([]byte("fresh"))
	select {
	case v := <-staleCh2:
		if string(v) != "fresh" {
			t.Fatalf("pop = %q, want %q", v, "fresh")
		}
	default:
		t.Fatalf("expected fresh push to be visible on the current channel")
	}
}
