package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shaiso/gradeflow/internal/collab"
	"github.com/shaiso/gradeflow/internal/domain"
	"github.com/shaiso/gradeflow/internal/mq"
	"github.com/shaiso/gradeflow/internal/orchestrator"
	"github.com/shaiso/gradeflow/internal/store"
	"github.com/shaiso/gradeflow/internal/worker"
)

type failingPolicy struct{}

func (failingPolicy) Decide(context.Context, *domain.GradedVerdict) (domain.Decision, error) {
	return domain.Decision{}, errors.New("policy engine unreachable")
}

// runPipeline поднимает оба воркера и Reconciler поверх MemoryBroker.
func runPipeline(t *testing.T, policy collab.Policy) *Service {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	broker := mq.NewMemoryBroker(nil)
	st := store.New()

	vision := worker.New(worker.Config{Broker: broker, Stage: worker.NewVisionStage(worker.VisionConfig{})})
	grader := worker.New(worker.Config{Broker: broker, Stage: worker.NewGradingStage(worker.GradingConfig{})})
	reconciler := orchestrator.New(orchestrator.Config{Broker: broker, Store: st, Policy: policy})

	for _, c := range []interface{ Start(context.Context) error }{vision, grader, reconciler} {
		if err := c.Start(ctx); err != nil {
			t.Fatalf("start: %v", err)
		}
	}

	t.Cleanup(func() {
		cancel()
		vision.Stop()
		grader.Stop()
		reconciler.Stop()
		broker.Close()
	})

	return New(Config{Broker: broker, Store: st})
}

func waitTerminal(t *testing.T, svc *Service, id string) domain.View {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		view, err := svc.Status(id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if view.Status.IsTerminal() {
			return view
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s did not reach terminal state", id)
	return domain.View{}
}

func TestPipeline_SentinelCompletes(t *testing.T) {
	svc := runPipeline(t, collab.StaticPolicy{PassScore: 5, MinConfidence: 0.5})

	id, err := svc.Submit(context.Background(), validSubmission())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	view := waitTerminal(t, svc, id)
	if view.Status != domain.TaskStatusComplete {
		t.Fatalf("expected COMPLETE, got %s", view.Status)
	}
	if view.Step != domain.StepComplete {
		t.Errorf("expected step %q, got %q", domain.StepComplete, view.Step)
	}
	if view.Result == nil {
		t.Fatal("expected result with final grade")
	}
	if view.Result.Status != domain.DecisionApproved || view.Result.FinalGrade != 7 {
		t.Errorf("expected APPROVED with grade 7, got %+v", view.Result)
	}
}

func TestPipeline_PolicyFailureFails(t *testing.T) {
	svc := runPipeline(t, failingPolicy{})

	id, err := svc.Submit(context.Background(), validSubmission())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	view := waitTerminal(t, svc, id)
	if view.Status != domain.TaskStatusFailed {
		t.Fatalf("expected FAILED, got %s", view.Status)
	}
	if view.Result == nil || view.Result.Status != domain.DecisionError {
		t.Errorf("expected ERROR decision, got %+v", view.Result)
	}
}
