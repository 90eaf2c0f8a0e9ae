package foreach

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"m365/internal/object"
)

func inputList(n int) object.List {
	list := make(object.List, n)
	for i := range list {
		list[i] = object.Record{"id": fmt.Sprintf("rec-%d", i)}
	}
	return list
}

// doubler emits two records derived from its input record.
func doubler(ctx context.Context, args []string, input object.List) (object.List, error) {
	rec := input[0]
	return object.List{
		{"source": rec["id"], "part": "a"},
		{"source": rec["id"], "part": "b"},
	}, nil
}

func failOn(indexes ...string) func(ctx context.Context, args []string, input object.List) (object.List, error) {
	bad := make(map[string]bool)
	for _, id := range indexes {
		bad[id] = true
	}
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		id, _ := input[0]["id"].(string)
		if bad[id] {
			return nil, fmt.Errorf("script exited 1 for %s", id)
		}
		return object.List{{"done": id}}, nil
	}
}

func TestRun_AllSucceed_OrderPreserved(t *testing.T) {
	out := Run(context.Background(), inputList(3), doubler, nil, Options{})
	if len(out.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", out.Failures)
	}
	flat := out.Output.Flatten()
	want := object.List{
		{"source": "rec-0", "part": "a"},
		{"source": "rec-0", "part": "b"},
		{"source": "rec-1", "part": "a"},
		{"source": "rec-1", "part": "b"},
		{"source": "rec-2", "part": "a"},
		{"source": "rec-2", "part": "b"},
	}
	if !object.EqualList(want, flat) {
		t.Errorf("aggregate order wrong:\n%v", flat)
	}
	if out.Succeeded() != 3 {
		t.Errorf("Succeeded = %d, want 3", out.Succeeded())
	}
}

func TestRun_EmptyInput(t *testing.T) {
	out := Run(context.Background(), object.List{}, doubler, nil, Options{})
	if out.Total != 0 || len(out.Failures) != 0 || len(out.Output.Flatten()) != 0 {
		t.Errorf("empty input must yield empty outcome: %+v", out)
	}
}

func TestRun_ContinueOnError(t *testing.T) {
	out := Run(context.Background(), inputList(3), failOn("rec-1"), nil, Options{})

	flat := out.Output.Flatten()
	want := object.List{{"done": "rec-0"}, {"done": "rec-2"}}
	if !object.EqualList(want, flat) {
		t.Errorf("aggregate = %v, want %v", flat, want)
	}

	if len(out.Failures) != 1 {
		t.Fatalf("manifest = %+v, want exactly one entry", out.Failures)
	}
	f := out.Failures[0]
	if f.Index != 1 || f.Kind != KindFailed || f.Identity != "id=rec-1" {
		t.Errorf("unexpected manifest entry: %+v", f)
	}
	if out.FailedCount() != 1 || out.Succeeded() != 2 {
		t.Errorf("counts wrong: failed=%d succeeded=%d", out.FailedCount(), out.Succeeded())
	}
}

func TestRun_FailFast(t *testing.T) {
	var invoked []string
	unit := func(ctx context.Context, args []string, input object.List) (object.List, error) {
		id := input[0]["id"].(string)
		invoked = append(invoked, id)
		if id == "rec-1" {
			return nil, fmt.Errorf("boom")
		}
		return object.List{{"done": id}}, nil
	}

	out := Run(context.Background(), inputList(3), unit, nil, Options{FailFast: true})

	wantInvoked := []string{"rec-0", "rec-1"}
	if diff := cmp.Diff(wantInvoked, invoked); diff != "" {
		t.Errorf("invocations (-want +got):\n%s", diff)
	}

	kinds := []string{}
	for _, f := range out.Failures {
		kinds = append(kinds, f.Kind)
	}
	if diff := cmp.Diff([]string{KindFailed, KindSkipped}, kinds); diff != "" {
		t.Errorf("manifest kinds (-want +got):\n%s", diff)
	}
	if out.Failures[1].Index != 2 {
		t.Errorf("skipped entry index = %d, want 2", out.Failures[1].Index)
	}
}

func TestRun_AllFail(t *testing.T) {
	out := Run(context.Background(), inputList(2), failOn("rec-0", "rec-1"), nil, Options{})
	if out.FailedCount() != 2 || out.Succeeded() != 0 {
		t.Errorf("counts wrong: %+v", out)
	}
	if len(out.Output.Flatten()) != 0 {
		t.Error("all-failed batch must produce no output")
	}
}

func TestRun_Cancellation_MarksSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	processed := 0
	unit := func(ctx context.Context, args []string, input object.List) (object.List, error) {
		processed++
		if processed == 2 {
			cancel()
			return nil, ctx.Err()
		}
		return object.List{{"done": input[0]["id"]}}, nil
	}

	out := Run(ctx, inputList(5), unit, nil, Options{})

	if !out.Cancelled {
		t.Fatal("outcome not marked cancelled")
	}
	if processed != 2 {
		t.Errorf("processed %d records after cancel, want 2", processed)
	}
	// Record 1 was interrupted mid-run, records 2..4 never started; all are
	// skipped, none failed.
	if out.FailedCount() != 0 {
		t.Errorf("cancelled records must not count as failed: %+v", out.Failures)
	}
	skipped := 0
	for _, f := range out.Failures {
		if f.Kind == KindSkipped {
			skipped++
		}
	}
	if skipped != 4 {
		t.Errorf("skipped = %d, want 4", skipped)
	}
}

func TestRun_Parallel_OrderPreserved(t *testing.T) {
	// Later records finish first; the aggregate must still be in input order.
	unit := func(ctx context.Context, args []string, input object.List) (object.List, error) {
		id := input[0]["id"].(string)
		if id == "rec-0" {
			time.Sleep(30 * time.Millisecond)
		}
		return object.List{{"done": id}}, nil
	}

	out := Run(context.Background(), inputList(4), unit, nil, Options{Parallel: 4})
	if len(out.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", out.Failures)
	}
	want := object.List{{"done": "rec-0"}, {"done": "rec-1"}, {"done": "rec-2"}, {"done": "rec-3"}}
	if !object.EqualList(want, out.Output.Flatten()) {
		t.Errorf("aggregate = %v, want input order", out.Output.Flatten())
	}
}

func TestRun_Parallel_BoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0

	unit := func(ctx context.Context, args []string, input object.List) (object.List, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return object.List{}, nil
	}

	Run(context.Background(), inputList(8), unit, nil, Options{Parallel: 2})
	if peak > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", peak)
	}
}

func TestRun_Parallel_ContinueOnError(t *testing.T) {
	out := Run(context.Background(), inputList(3), failOn("rec-1"), nil, Options{Parallel: 3})
	if out.FailedCount() != 1 {
		t.Fatalf("manifest: %+v", out.Failures)
	}
	want := object.List{{"done": "rec-0"}, {"done": "rec-2"}}
	if !object.EqualList(want, out.Output.Flatten()) {
		t.Errorf("aggregate = %v", out.Output.Flatten())
	}
}
