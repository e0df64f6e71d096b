package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestSubmission_Validate(t *testing.T) {
	valid := Submission{RubricText: "r", ImageB64: "test", TargetQuestion: "Q1"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub := Submission{RubricText: "  "}
	err := sub.Validate()
	if !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("expected ErrInvalidSubmission, got %v", err)
	}

	var fe *FieldError
	if !errors.As(err, &fe) || len(fe.Fields) != 3 {
		t.Errorf("expected all three fields reported, got %v", err)
	}
}

func TestTaskStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		want     bool
	}{
		{TaskStatusPending, TaskStatusComplete, true},
		{TaskStatusPending, TaskStatusFailed, true},
		{TaskStatusPending, TaskStatusAwaitingVision, true},
		{TaskStatusAwaitingVision, TaskStatusAwaitingGrade, true},
		{TaskStatusAwaitingGrade, TaskStatusAwaitingVision, false},
		{TaskStatusComplete, TaskStatusFailed, false},
		{TaskStatusFailed, TaskStatusComplete, false},
		{TaskStatusPending, TaskStatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestDecisionStatus_TaskStatus(t *testing.T) {
	if DecisionApproved.TaskStatus() != TaskStatusComplete ||
		DecisionRejected.TaskStatus() != TaskStatusComplete ||
		DecisionError.TaskStatus() != TaskStatusFailed {
		t.Error("unexpected decision to task status mapping")
	}
}

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.5, 0.5},
		{-1, 0},
		{2, 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := ClampConfidence(tt.in); got != tt.want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func gradedJSON(t *testing.T, mutate func(*GradedVerdict)) []byte {
	t.Helper()

	sub := NewSubmissionMessage("t-1", Submission{RubricText: "r", ImageB64: "test", TargetQuestion: "Q1"})
	v := GradedVerdict{
		SchemaVersion:   SchemaVersion,
		TaskID:          "t-1",
		AgentID:         "LLM_Grader_Agent_v1",
		AgentConfidence: 1,
		OriginalTask:    sub,
		VisionVerdict: VisionVerdict{
			SchemaVersion:   SchemaVersion,
			TaskID:          "t-1",
			AgentID:         "HWR_Agent_v1",
			AgentConfidence: 0.9,
			OriginalTask:    sub,
		},
		VerdictData: GradeData{Score: 7},
	}
	if mutate != nil {
		mutate(&v)
	}

	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func TestDecode_GradedVerdict(t *testing.T) {
	v, err := Decode[GradedVerdict](gradedJSON(t, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.VerdictData.Score != 7 || v.VisionVerdict.AgentID != "HWR_Agent_v1" {
		t.Errorf("unexpected verdict: %+v", v)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"not json", []byte("{")},
		{"missing task id", gradedJSON(t, func(v *GradedVerdict) { v.TaskID = "" })},
		{"missing agent", gradedJSON(t, func(v *GradedVerdict) { v.AgentID = "" })},
		{"confidence out of range", gradedJSON(t, func(v *GradedVerdict) { v.AgentConfidence = 1.5 })},
		{"future schema", gradedJSON(t, func(v *GradedVerdict) { v.SchemaVersion = SchemaVersion + 1 })},
		{"mismatched vision verdict", gradedJSON(t, func(v *GradedVerdict) { v.VisionVerdict.TaskID = "t-2" })},
		{"mismatched original task", gradedJSON(t, func(v *GradedVerdict) { v.OriginalTask.TaskID = "t-2" })},
		{"vision verdict missing agent", gradedJSON(t, func(v *GradedVerdict) { v.VisionVerdict.AgentID = "" })},
		{"vision verdict original mismatch", gradedJSON(t, func(v *GradedVerdict) { v.VisionVerdict.OriginalTask.TaskID = "t-2" })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode[GradedVerdict](tt.body); !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestDecode_MissingSchemaVersionDefaults(t *testing.T) {
	body := []byte(`{"task_id":"t-1","rubric_text":"r","image_b64":"test","target_question":"Q1"}`)

	m, err := Decode[SubmissionMessage](body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.SchemaVersion != SchemaVersion {
		t.Errorf("expected schema_version %d, got %d", SchemaVersion, m.SchemaVersion)
	}
}

func TestTask_ViewCopiesResult(t *testing.T) {
	task := &Task{Status: TaskStatusComplete, Result: &Decision{Status: DecisionApproved, FinalGrade: 8}}

	v := task.View()
	v.Result.FinalGrade = 0

	if task.Result.FinalGrade != 8 {
		t.Error("view must not alias task result")
	}
}
