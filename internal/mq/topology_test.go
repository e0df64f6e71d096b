package mq

import (
	"strings"
	"testing"
)

func TestPipelineQueues_Order(t *testing.T) {
	want := []Queue{QueueTasks, QueueVisionResult, QueueFinalResult}
	got := PipelineQueues()

	if len(got) != len(want) {
		t.Fatalf("expected %d queues, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("queue %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestTopologyInfo_ListsQueues(t *testing.T) {
	info := TopologyInfo()

	for _, q := range append(PipelineQueues(), QueueDeadLetter) {
		if !strings.Contains(info, string(q)) {
			t.Errorf("topology info missing %s", q)
		}
	}
	if !strings.Contains(info, string(ExchangeDLQ)) {
		t.Errorf("topology info missing exchange %s", ExchangeDLQ)
	}
}
