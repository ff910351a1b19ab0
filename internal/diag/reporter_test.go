package diag

import (
	"errors"
	"testing"
)

func TestEmitterFansOut(t *testing.T) {
	emitter := NewEmitter()

	var first, second []WriteFailure
	emitter.Subscribe(func(f WriteFailure) { first = append(first, f) })
	emitter.Subscribe(func(f WriteFailure) { second = append(second, f) })

	failure := WriteFailure{
		Operation: "create",
		Path:      "sessions/room-1",
		Err:       errors.New("permission denied"),
	}
	emitter.Report(failure)

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("deliveries = %d/%d, want 1/1", len(first), len(second))
	}
	if first[0].Path != "sessions/room-1" || first[0].Operation != "create" {
		t.Fatalf("delivered failure = %+v", first[0])
	}
}

func TestEmitterWithoutSubscribers(t *testing.T) {
	emitter := NewEmitter()
	// Reporting into the void must not panic or block.
	emitter.Report(WriteFailure{Operation: "update", Path: "sessions/room-2"})
}
