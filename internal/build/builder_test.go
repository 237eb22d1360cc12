package build

import (
	"testing"
	"time"

	"loglens/internal/model"
)

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse("2006-01-02 15:04:05.000", s)
	if err != nil {
		t.Fatalf("bad timestamp %q: %v", s, err)
	}
	return tm
}

func ev(t *testing.T, at, pid, msg string, details map[string]interface{}) model.EventNotification {
	t.Helper()
	if details == nil {
		details = map[string]interface{}{}
	}
	return model.EventNotification{
		Timestamp: ts(t, at),
		ProcessID: pid,
		ThreadID:  "Tx1",
		Message:   msg,
		Details:   details,
	}
}

func TestTasksLifecycle(t *testing.T) {
	tasks := Tasks([]model.EventNotification{
		ev(t, "2025-06-14 11:37:29.601", "Px1", model.EventTaskStarting,
			map[string]interface{}{"task_id": int64(42), "entry": "StartUp", "hash": "h1", "uuid": "emu-1"}),
		ev(t, "2025-06-14 11:37:31.601", "Px1", model.EventTaskSucceeded,
			map[string]interface{}{"task_id": int64(42), "uuid": "emu-1"}),
	}, Options{})

	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	task := tasks[0]
	if task.Status != model.TaskSucceeded {
		t.Errorf("status = %q", task.Status)
	}
	if task.DurationMS != 2000 {
		t.Errorf("duration = %dms, want 2000", task.DurationMS)
	}
	if task.EndTime == nil || !task.EndTime.Equal(ts(t, "2025-06-14 11:37:31.601")) {
		t.Errorf("end time = %v", task.EndTime)
	}
	if task.Entry != "StartUp" || task.Hash != "h1" || task.UUID != "emu-1" {
		t.Errorf("task = %+v", task)
	}
	if task.Nodes == nil {
		t.Error("nodes must be non-nil")
	}
}

// A second Starting for the same (process, uuid, task id) means the first
// run's completion was lost: it closes as failed at the second event's
// timestamp, and exactly one new task opens.
func TestTasksDuplicateStartForcesFailure(t *testing.T) {
	tasks := Tasks([]model.EventNotification{
		ev(t, "2025-06-14 11:37:29.000", "Px1", model.EventTaskStarting,
			map[string]interface{}{"task_id": int64(7), "entry": "Loop"}),
		ev(t, "2025-06-14 11:37:35.000", "Px1", model.EventTaskStarting,
			map[string]interface{}{"task_id": int64(7), "entry": "Loop"}),
	}, Options{})

	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[0].Status != model.TaskFailed {
		t.Errorf("first status = %q, want failed", tasks[0].Status)
	}
	if tasks[0].EndTime == nil || !tasks[0].EndTime.Equal(ts(t, "2025-06-14 11:37:35.000")) {
		t.Errorf("first end time = %v, want the second start's timestamp", tasks[0].EndTime)
	}
	if tasks[0].DurationMS != 6000 {
		t.Errorf("first duration = %dms", tasks[0].DurationMS)
	}
	if tasks[1].Status != model.TaskRunning {
		t.Errorf("second status = %q, want running", tasks[1].Status)
	}
	if tasks[0].Key == tasks[1].Key {
		t.Errorf("keys must be distinct, both %q", tasks[0].Key)
	}
}

// A terminal event without an exact triple entry still closes the newest
// open task with a matching task id and process.
func TestTasksFallbackTerminalResolution(t *testing.T) {
	tasks := Tasks([]model.EventNotification{
		ev(t, "2025-06-14 11:37:29.000", "Px1", model.EventTaskStarting,
			map[string]interface{}{"task_id": int64(3), "entry": "A", "uuid": "emu-1"}),
		// Terminal without the uuid.
		ev(t, "2025-06-14 11:37:30.000", "Px1", model.EventTaskFailed,
			map[string]interface{}{"task_id": int64(3)}),
	}, Options{})

	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if tasks[0].Status != model.TaskFailed {
		t.Errorf("status = %q, want failed", tasks[0].Status)
	}
}

func TestTasksOrphanedTerminalDropped(t *testing.T) {
	tasks := Tasks([]model.EventNotification{
		ev(t, "2025-06-14 11:37:30.000", "Px1", model.EventTaskSucceeded,
			map[string]interface{}{"task_id": int64(99)}),
	}, Options{})
	if len(tasks) != 0 {
		t.Fatalf("got %d tasks, want 0", len(tasks))
	}
}

func TestTasksWithoutTerminalStayRunning(t *testing.T) {
	tasks := Tasks([]model.EventNotification{
		ev(t, "2025-06-14 11:37:29.000", "Px1", model.EventTaskStarting,
			map[string]interface{}{"task_id": int64(1), "entry": "A"}),
	}, Options{})
	if len(tasks) != 1 || tasks[0].Status != model.TaskRunning {
		t.Fatalf("tasks = %+v", tasks)
	}
	if tasks[0].EndTime != nil {
		t.Errorf("end time = %v, want nil", tasks[0].EndTime)
	}
}

func TestTasksSentinelFiltered(t *testing.T) {
	tasks := Tasks([]model.EventNotification{
		ev(t, "2025-06-14 11:37:29.000", "Px1", model.EventTaskStarting,
			map[string]interface{}{"task_id": int64(1), "entry": SentinelEntry}),
		ev(t, "2025-06-14 11:37:29.100", "Px1", model.EventTaskSucceeded,
			map[string]interface{}{"task_id": int64(1)}),
		ev(t, "2025-06-14 11:37:29.200", "Px1", model.EventTaskStarting,
			map[string]interface{}{"task_id": int64(2), "entry": "Real"}),
	}, Options{})
	if len(tasks) != 1 || tasks[0].Entry != "Real" {
		t.Fatalf("tasks = %+v", tasks)
	}
}

// Explicit-marker accumulation: next-list, recognition and action events
// between two node events fold into the node that follows them.
func TestTasksExplicitAccumulationFolding(t *testing.T) {
	tasks := Tasks([]model.EventNotification{
		ev(t, "2025-06-14 11:37:29.000", "Px1", model.EventTaskStarting,
			map[string]interface{}{"task_id": int64(5), "entry": "E"}),
		ev(t, "2025-06-14 11:37:29.100", "Px1", model.EventNextListStarting,
			map[string]interface{}{"list": []interface{}{"ClickStart", "CloseAd"}}),
		ev(t, "2025-06-14 11:37:29.200", "Px1", model.EventRecognitionFailed,
			map[string]interface{}{"name": "ClickStart", "algorithm": "TemplateMatch"}),
		ev(t, "2025-06-14 11:37:29.300", "Px1", model.EventRecognitionSucceed,
			map[string]interface{}{"name": "CloseAd", "algorithm": "TemplateMatch", "reco_id": int64(9),
				"box": []interface{}{float64(10), float64(20), float64(30), float64(40)}}),
		ev(t, "2025-06-14 11:37:29.400", "Px1", model.EventActionSucceeded,
			map[string]interface{}{"action": map[string]interface{}{
				"type": "click", "params": map[string]interface{}{"point": "100,200"}}}),
		ev(t, "2025-06-14 11:37:29.500", "Px1", model.EventNodeSucceeded,
			map[string]interface{}{"name": "CloseAd", "node_id": int64(1)}),
		ev(t, "2025-06-14 11:37:30.000", "Px1", model.EventTaskSucceeded,
			map[string]interface{}{"task_id": int64(5)}),
	}, Options{})

	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if len(tasks[0].Nodes) != 1 {
		t.Fatalf("got %d nodes, want 1", len(tasks[0].Nodes))
	}
	node := tasks[0].Nodes[0]
	if node.Name != "CloseAd" || node.NodeID != 1 || node.Status != model.NodeSuccess {
		t.Errorf("node = %+v", node)
	}
	if len(node.NextList) != 2 || node.NextList[0].Name != "ClickStart" {
		t.Errorf("next list = %+v", node.NextList)
	}
	if len(node.RecognitionAttempts) != 2 {
		t.Fatalf("attempts = %+v", node.RecognitionAttempts)
	}
	if node.RecognitionAttempts[0].Status != model.AttemptMiss ||
		node.RecognitionAttempts[1].Status != model.AttemptHit {
		t.Errorf("attempt statuses = %+v", node.RecognitionAttempts)
	}
	if node.RecognitionAttempts[1].Box == nil {
		t.Error("hit attempt lost its box")
	}
	if node.Action == nil || node.Action.Type != "click" {
		t.Errorf("action = %+v", node.Action)
	}
}

// Trace-dialect nodes carry typed details on the node event itself; those win
// over anything accumulated from markers.
func TestTasksTypedDetailsWin(t *testing.T) {
	typedNext := []model.NextListItem{{Name: "Only"}}
	tasks := Tasks([]model.EventNotification{
		ev(t, "2025-06-14 11:37:29.000", "Px1", model.EventTaskStarting,
			map[string]interface{}{"task_id": int64(1), "entry": "E"}),
		ev(t, "2025-06-14 11:37:29.100", "Px1", model.EventNextListStarting,
			map[string]interface{}{"list": []interface{}{"Stale"}}),
		ev(t, "2025-06-14 11:37:29.200", "Px1", model.EventNodeSucceeded,
			map[string]interface{}{
				"name": "N", "node_id": int64(1),
				"next_list":    typedNext,
				"reco_details": &model.RecognitionDetail{Algorithm: "OCR", Box: []int{1, 2, 3, 4}},
			}),
		ev(t, "2025-06-14 11:37:30.000", "Px1", model.EventTaskSucceeded,
			map[string]interface{}{"task_id": int64(1)}),
	}, Options{})

	node := tasks[0].Nodes[0]
	if len(node.NextList) != 1 || node.NextList[0].Name != "Only" {
		t.Errorf("next list = %+v, typed value must win", node.NextList)
	}
	if node.Recognition == nil || node.Recognition.Algorithm != "OCR" {
		t.Errorf("recognition = %+v", node.Recognition)
	}
}

func TestTasksDuplicateNodeIDDropped(t *testing.T) {
	tasks := Tasks([]model.EventNotification{
		ev(t, "2025-06-14 11:37:29.000", "Px1", model.EventTaskStarting,
			map[string]interface{}{"task_id": int64(1), "entry": "E"}),
		ev(t, "2025-06-14 11:37:29.100", "Px1", model.EventNodeSucceeded,
			map[string]interface{}{"name": "First", "node_id": int64(1)}),
		ev(t, "2025-06-14 11:37:29.200", "Px1", model.EventNodeSucceeded,
			map[string]interface{}{"name": "Second", "node_id": int64(1)}),
		ev(t, "2025-06-14 11:37:30.000", "Px1", model.EventTaskSucceeded,
			map[string]interface{}{"task_id": int64(1)}),
	}, Options{})

	if len(tasks[0].Nodes) != 1 {
		t.Fatalf("got %d nodes, want 1", len(tasks[0].Nodes))
	}
	if tasks[0].Nodes[0].Name != "First" {
		t.Errorf("kept node = %q, duplicates must be dropped not overwritten", tasks[0].Nodes[0].Name)
	}
}

// Node events from another process inside the task's event range belong to
// that other process's task.
func TestTasksProcessIsolation(t *testing.T) {
	tasks := Tasks([]model.EventNotification{
		ev(t, "2025-06-14 11:37:29.000", "Px1", model.EventTaskStarting,
			map[string]interface{}{"task_id": int64(1), "entry": "A"}),
		ev(t, "2025-06-14 11:37:29.050", "Px2", model.EventTaskStarting,
			map[string]interface{}{"task_id": int64(1), "entry": "B"}),
		ev(t, "2025-06-14 11:37:29.100", "Px2", model.EventNodeSucceeded,
			map[string]interface{}{"name": "OtherProc", "node_id": int64(1)}),
		ev(t, "2025-06-14 11:37:30.000", "Px1", model.EventTaskSucceeded,
			map[string]interface{}{"task_id": int64(1)}),
		ev(t, "2025-06-14 11:37:30.100", "Px2", model.EventTaskSucceeded,
			map[string]interface{}{"task_id": int64(1)}),
	}, Options{})

	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if len(tasks[0].Nodes) != 0 {
		t.Errorf("Px1 nodes = %+v, want none", tasks[0].Nodes)
	}
	if len(tasks[1].Nodes) != 1 || tasks[1].Nodes[0].Name != "OtherProc" {
		t.Errorf("Px2 nodes = %+v", tasks[1].Nodes)
	}
}
