package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/gradeflow/internal/domain"
)

func testSubmission() domain.Submission {
	return domain.Submission{
		ExamID:         "exam-1",
		RubricText:     "Explain photosynthesis, max 10 pts",
		ImageB64:       domain.SentinelImage,
		TargetQuestion: "Q1",
	}
}

// fakeClock — управляемый источник времени.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestStore_CreateAndGet(t *testing.T) {
	s := New()

	created, err := s.Create("t1", testSubmission())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Status != domain.TaskStatusPending {
		t.Errorf("expected PENDING, got %s", created.Status)
	}
	if created.Step != domain.StepQueued {
		t.Errorf("expected step %q, got %q", domain.StepQueued, created.Step)
	}
	if created.Result != nil {
		t.Error("result should be nil for a new task")
	}

	got, err := s.Get("t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Submission != testSubmission() {
		t.Errorf("submission mismatch: %+v", got.Submission)
	}
}

func TestStore_CreateDuplicate(t *testing.T) {
	s := New()

	if _, err := s.Create("t1", testSubmission()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := s.Create("t1", testSubmission())
	if !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("expected ErrDuplicateTask, got %v", err)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	s := New()

	_, err := s.Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_TransitionTerminal(t *testing.T) {
	tests := []struct {
		name       string
		decision   domain.Decision
		wantStatus domain.TaskStatus
		wantResult domain.DecisionStatus
	}{
		{
			name:       "approved completes",
			decision:   domain.Decision{Status: domain.DecisionApproved, FinalGrade: 8},
			wantStatus: domain.TaskStatusComplete,
			wantResult: domain.DecisionApproved,
		},
		{
			name:       "rejected completes",
			decision:   domain.Decision{Status: domain.DecisionRejected, FinalGrade: 2},
			wantStatus: domain.TaskStatusComplete,
			wantResult: domain.DecisionRejected,
		},
		{
			name:       "error fails",
			decision:   domain.ErrorDecision("policy down", ""),
			wantStatus: domain.TaskStatusFailed,
			wantResult: domain.DecisionError,
		},
		{
			name:       "unknown status becomes error",
			decision:   domain.Decision{Status: "MANUAL_REVIEW"},
			wantStatus: domain.TaskStatusFailed,
			wantResult: domain.DecisionError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			if _, err := s.Create("t1", testSubmission()); err != nil {
				t.Fatalf("create: %v", err)
			}

			task, err := s.TransitionTerminal("t1", tt.decision, "LLM_Grader_Agent_v1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if task.Status != tt.wantStatus {
				t.Errorf("expected %s, got %s", tt.wantStatus, task.Status)
			}
			if task.Result == nil || task.Result.Status != tt.wantResult {
				t.Fatalf("expected result %s, got %+v", tt.wantResult, task.Result)
			}
			if task.FinishedAt == nil {
				t.Error("FinishedAt should be set")
			}
			if task.ProducerID != "LLM_Grader_Agent_v1" {
				t.Errorf("unexpected producer %q", task.ProducerID)
			}
		})
	}
}

func TestStore_TransitionTerminal_Idempotent(t *testing.T) {
	s := New()
	if _, err := s.Create("t1", testSubmission()); err != nil {
		t.Fatalf("create: %v", err)
	}

	first := domain.Decision{Status: domain.DecisionApproved, FinalGrade: 9, Justification: "good"}
	if _, err := s.TransitionTerminal("t1", first, "a"); err != nil {
		t.Fatalf("first transition: %v", err)
	}

	// Повторная доставка с другим решением не должна ничего менять
	second := domain.Decision{Status: domain.DecisionRejected, FinalGrade: 1}
	task, err := s.TransitionTerminal("t1", second, "b")
	if !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}
	if task == nil || task.Result.Status != domain.DecisionApproved {
		t.Errorf("existing record should be returned unchanged, got %+v", task)
	}

	got, _ := s.Get("t1")
	if *got.Result != first {
		t.Errorf("stored result changed: %+v", got.Result)
	}
	if got.ProducerID != "a" {
		t.Errorf("producer changed to %q", got.ProducerID)
	}
}

func TestStore_TransitionTerminal_UnknownTask(t *testing.T) {
	s := New()

	_, err := s.TransitionTerminal("ghost", domain.Decision{Status: domain.DecisionApproved}, "a")
	if !errors.Is(err, ErrUnknownTask) {
		t.Errorf("expected ErrUnknownTask, got %v", err)
	}
	if s.Len() != 0 {
		t.Error("store should stay empty")
	}
}

func TestStore_CreateFailed(t *testing.T) {
	s := New()

	task, err := s.CreateFailed("t1", testSubmission(), domain.StepPublishError,
		domain.ErrorDecision("broker down", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != domain.TaskStatusFailed {
		t.Errorf("expected FAILED, got %s", task.Status)
	}
	if task.Step != domain.StepPublishError {
		t.Errorf("unexpected step %q", task.Step)
	}

	// Терминальная запись не перезаписывается
	_, err = s.TransitionTerminal("t1", domain.Decision{Status: domain.DecisionApproved}, "a")
	if !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("expected ErrAlreadyTerminal, got %v", err)
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New()
	s.Create("t1", testSubmission())
	s.TransitionTerminal("t1", domain.Decision{Status: domain.DecisionApproved, FinalGrade: 7}, "a")

	got, _ := s.Get("t1")
	got.Result.FinalGrade = 0
	got.Status = domain.TaskStatusPending

	again, _ := s.Get("t1")
	if again.Result.FinalGrade != 7 || again.Status != domain.TaskStatusComplete {
		t.Errorf("store record mutated through returned copy: %+v", again)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("t%d", i)
		if _, err := s.Create(id, testSubmission()); err != nil {
			t.Fatalf("create: %v", err)
		}

		// Несколько конкурентных решений на одну задачу + читатели
		for j := 0; j < 3; j++ {
			wg.Add(2)
			go func(grade float64) {
				defer wg.Done()
				s.TransitionTerminal(id, domain.Decision{Status: domain.DecisionApproved, FinalGrade: grade}, "a")
			}(float64(j))
			go func() {
				defer wg.Done()
				task, err := s.Get(id)
				if err != nil {
					t.Errorf("get: %v", err)
					return
				}
				// Читатель видит либо PENDING без результата, либо полную терминальную запись
				if task.Status.IsTerminal() != (task.Result != nil) {
					t.Errorf("partial record observed: %+v", task)
				}
			}()
		}
	}
	wg.Wait()

	counts := s.Counts()
	if counts[domain.TaskStatusComplete] != n {
		t.Errorf("expected %d complete tasks, got %d", n, counts[domain.TaskStatusComplete])
	}
	if counts[domain.TaskStatusPending] != 0 {
		t.Errorf("expected no pending tasks, got %d", counts[domain.TaskStatusPending])
	}
}

func TestStore_List(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(WithClock(clock.Now))

	s.Create("a", testSubmission())
	clock.Advance(time.Second)
	s.Create("b", testSubmission())
	clock.Advance(time.Second)
	s.Create("c", testSubmission())
	s.TransitionTerminal("b", domain.Decision{Status: domain.DecisionApproved}, "x")

	all := s.List(Filter{})
	if len(all) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(all))
	}
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("expected newest first, got %s..%s", all[0].ID, all[2].ID)
	}

	pending := s.List(Filter{Status: domain.TaskStatusPending})
	if len(pending) != 2 {
		t.Errorf("expected 2 pending, got %d", len(pending))
	}

	limited := s.List(Filter{Limit: 1})
	if len(limited) != 1 || limited[0].ID != "c" {
		t.Errorf("unexpected limited list: %+v", limited)
	}
}

func TestStore_ExpireStale(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(WithClock(clock.Now))

	s.Create("old", testSubmission())
	s.Create("old-done", testSubmission())
	s.TransitionTerminal("old-done", domain.Decision{Status: domain.DecisionApproved}, "a")
	clock.Advance(10 * time.Minute)
	s.Create("fresh", testSubmission())

	expired := s.ExpireStale(clock.Now().Add(-5*time.Minute), domain.ErrorDecision("no result within deadline", ""))
	if len(expired) != 1 || expired[0] != "old" {
		t.Fatalf("expected only 'old' to expire, got %v", expired)
	}

	old, _ := s.Get("old")
	if old.Status != domain.TaskStatusFailed || old.Step != domain.StepTimedOut {
		t.Errorf("unexpected expired record: %+v", old)
	}

	done, _ := s.Get("old-done")
	if done.Status != domain.TaskStatusComplete {
		t.Errorf("completed task must not be expired, got %s", done.Status)
	}

	fresh, _ := s.Get("fresh")
	if fresh.Status != domain.TaskStatusPending {
		t.Errorf("fresh task must stay pending, got %s", fresh.Status)
	}

	// Поздний результат для проваленной по таймауту задачи игнорируется
	_, err := s.TransitionTerminal("old", domain.Decision{Status: domain.DecisionApproved}, "a")
	if !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("expected ErrAlreadyTerminal for late result, got %v", err)
	}
}

func TestStore_EvictFinished(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(WithClock(clock.Now))

	s.Create("done", testSubmission())
	s.TransitionTerminal("done", domain.Decision{Status: domain.DecisionApproved}, "a")
	s.Create("pending", testSubmission())
	clock.Advance(2 * time.Hour)
	s.Create("recent", testSubmission())
	s.TransitionTerminal("recent", domain.Decision{Status: domain.DecisionRejected}, "a")

	evicted := s.EvictFinished(clock.Now().Add(-time.Hour))
	if evicted != 1 {
		t.Fatalf("expected 1 evicted, got %d", evicted)
	}
	if s.Has("done") {
		t.Error("old terminal task should be evicted")
	}
	if !s.Has("pending") {
		t.Error("non-terminal task must never be evicted")
	}
	if !s.Has("recent") {
		t.Error("recently finished task should be kept")
	}
}
