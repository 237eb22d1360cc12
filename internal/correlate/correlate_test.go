package correlate

import (
	"math"
	"testing"
	"time"

	"loglens/internal/model"
)

func msTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func task(key string, id int64, startMS int64, endMS *int64) model.Task {
	t := model.Task{Key: key, TaskID: id, StartTime: msTime(startMS)}
	if endMS != nil {
		end := msTime(*endMS)
		t.EndTime = &end
	}
	return t
}

func i64(v int64) *int64 { return &v }

func TestEntriesNoTasksUnchanged(t *testing.T) {
	in := []model.AuxLogEntry{{Raw: "x", TaskID: i64(1)}}
	out := Entries(in, nil, Options{})
	if len(out) != 1 || out[0].Correlation != nil {
		t.Fatalf("out = %+v, want input unchanged", out)
	}
}

func TestEntriesIdentifierWins(t *testing.T) {
	tasks := []model.Task{
		task("a", 1, 0, i64(1000)),
		task("b", 2, 0, i64(1000)),
	}
	tasks[1].Identifier = "emu-5554"

	out := Entries([]model.AuxLogEntry{{
		Identifier:  "emu-5554",
		TaskID:      i64(1), // would match task a; identifier takes precedence
		TimestampMS: i64(500),
	}}, tasks, Options{})

	c := out[0].Correlation
	if c == nil || c.Status != model.CorrelationMatched {
		t.Fatalf("correlation = %+v", c)
	}
	if c.Strategy != model.StrategyIdentifier || c.TaskKey != "b" || c.Score != 1.0 {
		t.Errorf("correlation = %+v", c)
	}
}

func TestEntriesUniqueTaskID(t *testing.T) {
	tasks := []model.Task{task("a", 42, 0, i64(1000))}
	out := Entries([]model.AuxLogEntry{{TaskID: i64(42)}}, tasks, Options{})
	c := out[0].Correlation
	if c.Strategy != model.StrategyTaskID || c.TaskKey != "a" || c.Score != 0.9 {
		t.Fatalf("correlation = %+v", c)
	}
}

// Several tasks share the id: the entry's timestamp picks the owner whose
// interval fits best.
func TestEntriesTaskIDMultipleOwners(t *testing.T) {
	tasks := []model.Task{
		task("old", 7, 0, i64(1000)),
		task("new", 7, 60_000, i64(61_000)),
	}
	out := Entries([]model.AuxLogEntry{
		{TaskID: i64(7), TimestampMS: i64(60_500)},
		{TaskID: i64(7), TimestampMS: i64(500)},
		{TaskID: i64(7)}, // no timestamp: first owner, flat score
	}, tasks, Options{})

	if c := out[0].Correlation; c.TaskKey != "new" || c.Score != 1.0 {
		t.Errorf("in-interval entry = %+v", c)
	}
	if c := out[1].Correlation; c.TaskKey != "old" || c.Score != 1.0 {
		t.Errorf("early entry = %+v", c)
	}
	if c := out[2].Correlation; c.TaskKey != "old" || c.Score != 0.9 {
		t.Errorf("timestamp-less entry = %+v", c)
	}
}

func TestEntriesTimeWindow(t *testing.T) {
	tasks := []model.Task{task("a", 1, 10_000, i64(20_000))}

	cases := []struct {
		name      string
		ts        int64
		wantMatch bool
		wantScore float64
	}{
		{"inside interval", 15_000, true, 1.0},
		{"at the edge", 20_000, true, 1.0},
		{"one second late", 21_000, true, 0.8},
		{"half window late", 22_500, false, 0}, // score 0.5 is not > 0.5
		{"beyond the window", 26_000, false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Entries([]model.AuxLogEntry{{TimestampMS: i64(tc.ts)}}, tasks, Options{})
			c := out[0].Correlation
			if tc.wantMatch {
				if c.Status != model.CorrelationMatched || c.Strategy != model.StrategyTimeWindow {
					t.Fatalf("correlation = %+v", c)
				}
				if math.Abs(c.Score-tc.wantScore) > 1e-9 {
					t.Errorf("score = %v, want %v", c.Score, tc.wantScore)
				}
				return
			}
			if c.Status != model.CorrelationUnmatched || c.Strategy != model.StrategyNone {
				t.Errorf("correlation = %+v, want unmatched", c)
			}
		})
	}
}

// A task without a terminal event keeps a 60s acceptance span from its start.
func TestEntriesOpenTaskSpan(t *testing.T) {
	tasks := []model.Task{task("open", 1, 0, nil)}
	out := Entries([]model.AuxLogEntry{
		{TimestampMS: i64(59_000)},
		{TimestampMS: i64(70_000)},
	}, tasks, Options{})
	if c := out[0].Correlation; c.Status != model.CorrelationMatched || c.Score != 1.0 {
		t.Errorf("in-span entry = %+v", c)
	}
	if c := out[1].Correlation; c.Status != model.CorrelationUnmatched {
		t.Errorf("out-of-span entry = %+v", c)
	}
}

func TestEntriesNoHintsUnmatched(t *testing.T) {
	tasks := []model.Task{task("a", 1, 0, i64(1000))}
	out := Entries([]model.AuxLogEntry{{Raw: "plain line"}}, tasks, Options{})
	c := out[0].Correlation
	if c.Status != model.CorrelationUnmatched || c.Strategy != model.StrategyNone {
		t.Fatalf("correlation = %+v", c)
	}
}

func TestEntriesDoesNotMutateInput(t *testing.T) {
	tasks := []model.Task{task("a", 1, 0, i64(1000))}
	in := []model.AuxLogEntry{{TaskID: i64(1)}}
	Entries(in, tasks, Options{})
	if in[0].Correlation != nil {
		t.Fatal("input slice was mutated")
	}
}

func TestParseAuxLine(t *testing.T) {
	e := ParseAuxLine(`[2025-06-14 11:37:29.601][INFO][agent-7] upload done task_id=42 identifier=emu-1 size=123`)
	if e.TimestampMS == nil {
		t.Fatal("timestamp not parsed")
	}
	want := time.Date(2025, 6, 14, 11, 37, 29, 601_000_000, time.UTC).UnixMilli()
	if *e.TimestampMS != want {
		t.Errorf("timestamp = %d, want %d", *e.TimestampMS, want)
	}
	if e.Level != "INFO" {
		t.Errorf("level = %q", e.Level)
	}
	if e.TaskID == nil || *e.TaskID != 42 {
		t.Errorf("task_id = %v", e.TaskID)
	}
	if e.Identifier != "emu-1" {
		t.Errorf("identifier = %q (message identifier= overrides bracket field)", e.Identifier)
	}
	if e.Message != "upload done" {
		t.Errorf("message = %q", e.Message)
	}
	if e.Fields["size"] != "123" {
		t.Errorf("fields = %v", e.Fields)
	}
}

func TestParseAuxLineBracketIdentifier(t *testing.T) {
	e := ParseAuxLine(`[2025-06-14 11:37:29][WARN][device-3] screen off`)
	if e.Identifier != "device-3" {
		t.Errorf("identifier = %q", e.Identifier)
	}
	if e.Message != "screen off" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestParseAuxLinePlainText(t *testing.T) {
	e := ParseAuxLine("no structure at all")
	if e.Message != "no structure at all" || e.TimestampMS != nil || e.Level != "" {
		t.Errorf("entry = %+v", e)
	}
	if e.Fields != nil {
		t.Errorf("fields = %v, want nil", e.Fields)
	}
}

func TestParseAuxLinesSkipsBlank(t *testing.T) {
	entries := ParseAuxLines([]string{"a", "", "  ", "b"})
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}
