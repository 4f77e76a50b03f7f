package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/rdpscan/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, summary *model.Summary) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, summary *model.Summary) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, summary)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()

		if p == nil {
			t.Fatal("expected non-nil pipeline")
		}
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))

		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

// TestPipelineAddStep tests adding steps to the pipeline.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	if p.StepCount() != 3 {
		t.Fatalf("expected 3 steps, got %d", p.StepCount())
	}
	names := p.StepNames()
	want := []string{"first", "second", "third"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("step %d: expected %q, got %q", i, want[i], names[i])
		}
	}
}

// TestPipelineExecute tests step execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		step := func(name string) *mockStep {
			return &mockStep{
				name: name,
				doFunc: func(context.Context, *model.Summary) error {
					order = append(order, name)
					return nil
				},
			}
		}

		p := New()
		p.AddSteps(step("a"), step("b"), step("c"))

		if err := p.Execute(context.Background(), model.NewSummary(0)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()

		errStep := errors.New("step failed")
		failing := &mockStep{name: "failing", doFunc: func(context.Context, *model.Summary) error { return errStep }}
		after := &mockStep{name: "after"}

		p := New()
		p.AddSteps(failing, after)

		if err := p.Execute(context.Background(), model.NewSummary(0)); !errors.Is(err, errStep) {
			t.Errorf("expected step error, got %v", err)
		}
		if after.callCount != 0 {
			t.Error("expected later step to be skipped")
		}
	})

	t.Run("continues on error and joins errors", func(t *testing.T) {
		t.Parallel()

		errA := errors.New("a failed")
		errB := errors.New("b failed")
		a := &mockStep{name: "a", doFunc: func(context.Context, *model.Summary) error { return errA }}
		ok := &mockStep{name: "ok"}
		b := &mockStep{name: "b", doFunc: func(context.Context, *model.Summary) error { return errB }}

		p := New(WithContinueOnError(true))
		p.AddSteps(a, ok, b)

		err := p.Execute(context.Background(), model.NewSummary(0))
		if !errors.Is(err, errA) || !errors.Is(err, errB) {
			t.Errorf("expected both errors, got %v", err)
		}
		if ok.callCount != 1 {
			t.Error("expected middle step to run")
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "never"}
		p := New()
		p.AddStep(step)

		if err := p.Execute(ctx, model.NewSummary(0)); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("expected step not to run")
		}
	})

	t.Run("empty pipeline succeeds", func(t *testing.T) {
		t.Parallel()

		if err := New().Execute(context.Background(), model.NewSummary(0)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
