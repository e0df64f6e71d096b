package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shaiso/gradeflow/internal/collab"
	"github.com/shaiso/gradeflow/internal/domain"
	"github.com/shaiso/gradeflow/internal/mq"
)

// --- fakes ---

type fakeExtractor struct {
	ext   collab.Extraction
	err   error
	delay time.Duration
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, _ string) (collab.Extraction, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return collab.Extraction{}, ctx.Err()
		}
	}
	return f.ext, f.err
}

type fakeGrader struct {
	grade  collab.Grade
	err    error
	calls  int
	rubric string
	answer string
}

func (f *fakeGrader) Grade(_ context.Context, rubric, answer string) (collab.Grade, error) {
	f.calls++
	f.rubric, f.answer = rubric, answer
	return f.grade, f.err
}

func submissionBody(t *testing.T, id, image string) []byte {
	t.Helper()
	msg := domain.NewSubmissionMessage(id, domain.Submission{
		RubricText:     "Explain photosynthesis, max 10 pts",
		ImageB64:       image,
		TargetQuestion: "Q1",
	})
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func visionBody(t *testing.T, id, image, text string) []byte {
	t.Helper()
	v := domain.VisionVerdict{
		SchemaVersion:   domain.SchemaVersion,
		TaskID:          id,
		AgentID:         DefaultVisionAgentID,
		AgentConfidence: domain.ConfidenceOCRText,
		OriginalTask: domain.NewSubmissionMessage(id, domain.Submission{
			RubricText: "Explain photosynthesis, max 10 pts",
			ImageB64:   image,
		}),
		VerdictData: domain.VisionData{ExtractedText: text},
	}
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

// --- VisionStage Tests ---

func TestVisionStage_Sentinel(t *testing.T) {
	ext := &fakeExtractor{err: errors.New("must not be called")}
	stage := NewVisionStage(VisionConfig{Extractor: ext})

	res, err := stage.Process(context.Background(), submissionBody(t, "t-1", domain.SentinelImage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v := res.Envelope.(domain.VisionVerdict)
	if v.VerdictData.ExtractedText != SentinelText {
		t.Errorf("expected placeholder text, got %q", v.VerdictData.ExtractedText)
	}
	if v.AgentConfidence != domain.ConfidenceSentinel {
		t.Errorf("expected confidence %v, got %v", domain.ConfidenceSentinel, v.AgentConfidence)
	}
	if ext.calls != 0 {
		t.Errorf("extractor should be bypassed, got %d calls", ext.calls)
	}
	if v.OriginalTask.TaskID != "t-1" || v.TaskID != "t-1" {
		t.Errorf("task id not carried: %+v", v)
	}
}

func TestVisionStage_Confidence(t *testing.T) {
	tests := []struct {
		name     string
		ext      *fakeExtractor
		wantText string
		wantConf float64
		wantErr  bool
	}{
		{
			name:     "text found",
			ext:      &fakeExtractor{ext: collab.Extraction{Text: "chlorophyll"}},
			wantText: "chlorophyll",
			wantConf: domain.ConfidenceOCRText,
		},
		{
			name:     "blank text",
			ext:      &fakeExtractor{ext: collab.Extraction{Text: "  \n"}},
			wantText: NoTextFound,
			wantConf: domain.ConfidenceNoText,
		},
		{
			name:     "collaborator error",
			ext:      &fakeExtractor{err: fmt.Errorf("%w: HTTP 500", collab.ErrCollaborator)},
			wantConf: domain.ConfidenceFailed,
			wantErr:  true,
		},
		{
			name:     "timeout",
			ext:      &fakeExtractor{delay: time.Second},
			wantConf: domain.ConfidenceFailed,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := NewVisionStage(VisionConfig{Extractor: tt.ext, Timeout: 20 * time.Millisecond})

			res, err := stage.Process(context.Background(), submissionBody(t, "t-1", "aGVsbG8="))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			v := res.Envelope.(domain.VisionVerdict)
			if v.AgentConfidence != tt.wantConf {
				t.Errorf("expected confidence %v, got %v", tt.wantConf, v.AgentConfidence)
			}
			if tt.wantErr {
				if v.VerdictData.Error == "" {
					t.Error("expected error in verdict data")
				}
				if v.AgentConfidence > 0.3 {
					t.Errorf("degraded confidence must be <= 0.3, got %v", v.AgentConfidence)
				}
				return
			}
			if v.VerdictData.ExtractedText != tt.wantText {
				t.Errorf("expected text %q, got %q", tt.wantText, v.VerdictData.ExtractedText)
			}
		})
	}
}

func TestVisionStage_Malformed(t *testing.T) {
	stage := NewVisionStage(VisionConfig{})

	for _, body := range []string{`not json`, `{"task_id":""}`, `{"task_id":"t-1"}`} {
		_, err := stage.Process(context.Background(), []byte(body))
		if !errors.Is(err, domain.ErrMalformedMessage) {
			t.Errorf("%s: expected ErrMalformedMessage, got %v", body, err)
		}
	}
}

// --- GradingStage Tests ---

func TestGradingStage_Success(t *testing.T) {
	grader := &fakeGrader{grade: collab.Grade{Score: 8, Justification: "good", Feedback: "more detail", Confidence: 1}}
	stage := NewGradingStage(GradingConfig{Grader: grader})

	res, err := stage.Process(context.Background(), visionBody(t, "t-1", "aGVsbG8=", "light to sugar"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g := res.Envelope.(domain.GradedVerdict)
	if g.VerdictData.Score != 8 || g.AgentConfidence != domain.ConfidenceGraded {
		t.Errorf("unexpected verdict: %+v", g)
	}
	if g.VisionVerdict.TaskID != "t-1" || g.OriginalTask.TaskID != "t-1" {
		t.Error("provenance chain not nested")
	}
	if grader.answer != "light to sugar" {
		t.Errorf("expected extracted text forwarded, got %q", grader.answer)
	}
}

func TestGradingStage_Sentinel(t *testing.T) {
	grader := &fakeGrader{err: errors.New("must not be called")}
	stage := NewGradingStage(GradingConfig{Grader: grader})

	res, err := stage.Process(context.Background(), visionBody(t, "t-1", domain.SentinelImage, SentinelText))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g := res.Envelope.(domain.GradedVerdict)
	if g.VerdictData.Score != sentinelScore || g.AgentConfidence != domain.ConfidenceSentinel {
		t.Errorf("unexpected sentinel verdict: %+v", g)
	}
	if grader.calls != 0 {
		t.Error("grader should be bypassed")
	}
}

func TestGradingStage_Degraded(t *testing.T) {
	tests := []struct {
		name        string
		grader      *fakeGrader
		text        string
		wantJustify string
	}{
		{"llm error", &fakeGrader{err: fmt.Errorf("%w: HTTP 429", collab.ErrCollaborator)}, "answer", llmErrorPrefix},
		{"llm bad json", &fakeGrader{err: fmt.Errorf("%w: missing score", collab.ErrMalformedResponse)}, "answer", llmJSONErrorPrefix},
		{"missing text", &fakeGrader{}, "", "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := NewGradingStage(GradingConfig{Grader: tt.grader})

			res, err := stage.Process(context.Background(), visionBody(t, "t-1", "aGVsbG8=", tt.text))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			g := res.Envelope.(domain.GradedVerdict)
			if g.AgentConfidence != domain.ConfidenceFailed {
				t.Errorf("expected degraded confidence, got %v", g.AgentConfidence)
			}
			if g.VerdictData.Score != 0 || g.VerdictData.Error == "" {
				t.Errorf("expected zero score with error, got %+v", g.VerdictData)
			}
			if len(g.VerdictData.Justification) < len(tt.wantJustify) ||
				g.VerdictData.Justification[:len(tt.wantJustify)] != tt.wantJustify {
				t.Errorf("expected justification prefix %q, got %q", tt.wantJustify, g.VerdictData.Justification)
			}
		})
	}
}

// --- Worker Tests ---

func collect(ctx context.Context, b *mq.MemoryBroker, q mq.Queue) <-chan []byte {
	out := make(chan []byte, 16)
	go b.Consume(ctx, q, func(_ context.Context, d *mq.Delivery) mq.Outcome {
		out <- d.Body
		return mq.Ack
	})
	return out
}

func TestWorker_PipelineThroughMemoryBroker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := mq.NewMemoryBroker(nil)
	defer broker.Close()

	vision := New(Config{Broker: broker, Stage: NewVisionStage(VisionConfig{})})
	grading := New(Config{Broker: broker, Stage: NewGradingStage(GradingConfig{})})
	vision.Start(ctx)
	grading.Start(ctx)
	defer vision.Stop()
	defer grading.Stop()

	results := collect(ctx, broker, mq.QueueFinalResult)

	if err := broker.PublishRaw(mq.QueueTasks, submissionBody(t, "t-e2e", domain.SentinelImage)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case body := <-results:
		g, err := domain.Decode[domain.GradedVerdict](body)
		if err != nil {
			t.Fatalf("decode graded verdict: %v", err)
		}
		if g.TaskID != "t-e2e" || g.VisionVerdict.VerdictData.ExtractedText != SentinelText {
			t.Errorf("unexpected graded verdict: %+v", g)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for graded verdict")
	}
}

func TestWorker_RejectsMalformed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := mq.NewMemoryBroker(nil)
	defer broker.Close()

	w := New(Config{Broker: broker, Stage: NewVisionStage(VisionConfig{})})
	w.Start(ctx)
	defer w.Stop()

	broker.PublishRaw(mq.QueueTasks, []byte(`{"broken":`))
	broker.PublishRaw(mq.QueueTasks, submissionBody(t, "t-2", domain.SentinelImage))

	deadline := time.Now().Add(2 * time.Second)
	for broker.Len(mq.QueueVisionResult) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if n := len(broker.DeadLetters()); n != 1 {
		t.Errorf("expected 1 dead letter, got %d", n)
	}
	if n := broker.Len(mq.QueueVisionResult); n != 1 {
		t.Errorf("loop must keep consuming after a malformed message, got %d results", n)
	}
}

// failingBroker отказывает в публикации, но доставляет входящие сообщения.
type failingBroker struct {
	*mq.MemoryBroker
}

func (b failingBroker) Publish(context.Context, mq.Queue, any) error {
	return mq.ErrNoChannel
}

func TestWorker_RequeuesOnPublishFailure(t *testing.T) {
	broker := mq.NewMemoryBroker(nil)
	defer broker.Close()

	w := New(Config{
		Broker:       failingBroker{broker},
		Stage:        NewVisionStage(VisionConfig{}),
		RequeueDelay: time.Millisecond,
	})

	outcome := w.handle(context.Background(), &mq.Delivery{
		Queue: mq.QueueTasks,
		Body:  submissionBody(t, "t-3", domain.SentinelImage),
	})
	if outcome != mq.Requeue {
		t.Errorf("expected Requeue, got %s", outcome)
	}
}

func TestWorker_StartStop(t *testing.T) {
	broker := mq.NewMemoryBroker(nil)
	w := New(Config{Broker: broker, Stage: NewVisionStage(VisionConfig{})})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	w.Stop()

	if !w.IsStopped() {
		t.Error("expected worker to be stopped")
	}
}
