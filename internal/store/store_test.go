package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"loglens/internal/engine"
	"loglens/internal/model"
)

func openTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs", "loglens.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult() *engine.Result {
	end := time.Date(2025, 6, 14, 11, 37, 31, 0, time.UTC)
	return &engine.Result{
		Tasks: []model.Task{{
			Key:       "Px1/emu-1/42#0",
			TaskID:    42,
			Entry:     "StartUp",
			StartTime: time.Date(2025, 6, 14, 11, 37, 29, 0, time.UTC),
			EndTime:   &end,
			Status:    model.TaskSucceeded,
			ProcessID: "Px1",
			Nodes:     []model.Node{},
		}},
		AuxLogs:     []model.AuxLogEntry{{Raw: "x", Message: "x"}},
		Controllers: []model.ControllerInfo{},
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	s := openTestStore(t)

	id, err := s.SaveRun("maa.log", sampleResult())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == "" {
		t.Fatal("empty run id")
	}

	res, err := s.LoadRun(id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Tasks) != 1 || res.Tasks[0].Key != "Px1/emu-1/42#0" {
		t.Errorf("tasks = %+v", res.Tasks)
	}
	if res.Tasks[0].Status != model.TaskSucceeded {
		t.Errorf("status = %q", res.Tasks[0].Status)
	}
	if len(res.AuxLogs) != 1 {
		t.Errorf("aux = %+v", res.AuxLogs)
	}
}

func TestListRuns(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.SaveRun("a.log", sampleResult()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveRun("b.log", sampleResult()); err != nil {
		t.Fatal(err)
	}

	runs, err := s.ListRuns(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	for _, m := range runs {
		if m.TaskCount != 1 || m.AuxCount != 1 || m.Controllers != 0 {
			t.Errorf("meta = %+v", m)
		}
		if m.CreatedAt.IsZero() {
			t.Errorf("zero created_at for %s", m.ID)
		}
	}

	limited, err := s.ListRuns(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("got %d runs with limit 1", len(limited))
	}
}

func TestLoadRunNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.LoadRun("no-such-run"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}
