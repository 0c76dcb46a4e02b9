package parallel

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestRunCoversEveryIndexExactlyOnce(t *testing.T) {
	const n = 200
	var seen [n]int32
	Run(n, 8, func(i int) {
		atomic.AddInt32(&seen[i], 1)
	})
	for i, c := range seen {
		if c != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, c)
		}
	}
}

func TestRunSequentialWhenWorkersIsOne(t *testing.T) {
	var order []int
	Run(5, 1, func(i int) { order = append(order, i) })
	for i, v := range order {
		if v != i {
			t.Fatalf("sequential Run out of order: %v", order)
		}
	}
}

func TestRunErrReturnsFirstObservedError(t *testing.T) {
	boom := errors.New("boom")
	err := RunErr(50, 4, func(i int) error {
		if i == 10 {
			return boom
		}
		return nil
	})
	if err != boom {
		t.Fatalf("got %v, want boom", err)
	}
}

func TestRunErrNilWhenNoFailures(t *testing.T) {
	if err := RunErr(50, 4, func(i int) error { return nil }); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
}
