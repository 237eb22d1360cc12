// Package build folds the dialect-agnostic event stream into a Task tree.
// The builder is strictly after-the-fact: it runs once all sources have been
// extracted, never interleaved with extraction.
package build

import (
	"fmt"

	"go.uber.org/zap"

	"loglens/internal/model"
	"loglens/internal/parse"
)

// SentinelEntry is the framework's internal bookkeeping task. It carries no
// operator-visible work and is filtered from the final output.
const SentinelEntry = "__stop__"

// Options configures one builder pass.
type Options struct {
	// Pool interns the node and entry vocabulary; nil allocates a private
	// one. The pool is cleared when the pass finishes either way.
	Pool *parse.StringPool
	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
}

// Tasks reconstructs the task list from an event stream.
//
// The first pass resolves task lifecycles through the running-task map keyed
// by (process, uuid-or-empty, task id); the second slices each task's own
// event sub-range and folds node events into it. Orphaned terminal events
// are dropped silently.
func Tasks(events []model.EventNotification, opts Options) []model.Task {
	pool := opts.Pool
	if pool == nil {
		pool = parse.NewStringPool(0)
	}
	defer pool.Clear()
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	b := &builder{events: events, pool: pool, log: log, running: map[string]int{}}
	b.resolveLifecycles()
	b.foldNodes()
	return b.finish()
}

// taskMeta tracks the event sub-range a task owns; last < 0 means the task
// never saw a terminal event.
type taskMeta struct {
	first int
	last  int
}

type builder struct {
	events []model.EventNotification
	pool   *parse.StringPool
	log    *zap.Logger

	tasks   []model.Task
	meta    []taskMeta
	running map[string]int // lifecycle triple -> tasks index
}

func triple(pid, uuid string, taskID int64) string {
	return fmt.Sprintf("%s\x00%s\x00%d", pid, uuid, taskID)
}

func (b *builder) resolveLifecycles() {
	for i, ev := range b.events {
		switch ev.Message {
		case model.EventTaskStarting:
			b.openTask(i, ev)
		case model.EventTaskSucceeded:
			b.closeTask(i, ev, model.TaskSucceeded)
		case model.EventTaskFailed:
			b.closeTask(i, ev, model.TaskFailed)
		}
	}
	for j := range b.tasks {
		if b.meta[j].last < 0 {
			b.meta[j].last = len(b.events) - 1
		}
	}
}

func (b *builder) openTask(i int, ev model.EventNotification) {
	taskID, _ := model.DetailInt64(ev.Details, "task_id")
	uuid := model.DetailString(ev.Details, "uuid")
	key := triple(ev.ProcessID, uuid, taskID)

	// At most one task per triple may be running. A second Starting means
	// the first one's completion was lost; close it as failed at the new
	// event's timestamp.
	if j, ok := b.running[key]; ok {
		b.log.Debug("force-closing task with lost completion",
			zap.String("key", b.tasks[j].Key))
		b.terminate(j, i, ev, model.TaskFailed)
	}

	t := model.Task{
		TaskID:    taskID,
		Entry:     b.pool.Intern(model.DetailString(ev.Details, "entry")),
		Hash:      model.DetailString(ev.Details, "hash"),
		UUID:      uuid,
		StartTime: ev.Timestamp,
		Status:    model.TaskRunning,
		ProcessID: ev.ProcessID,
		ThreadID:  ev.ThreadID,
	}
	t.Key = fmt.Sprintf("%s/%s/%d#%d", ev.ProcessID, uuid, taskID, len(b.tasks))
	b.tasks = append(b.tasks, t)
	b.meta = append(b.meta, taskMeta{first: i, last: -1})
	b.running[key] = len(b.tasks) - 1
}

func (b *builder) closeTask(i int, ev model.EventNotification, status model.TaskStatus) {
	taskID, _ := model.DetailInt64(ev.Details, "task_id")
	uuid := model.DetailString(ev.Details, "uuid")

	j, ok := b.running[triple(ev.ProcessID, uuid, taskID)]
	if !ok {
		// No exact triple entry: fall back to any still-open task with
		// the same task id and process (and uuid, when one is present).
		j, ok = b.findOpenFallback(ev.ProcessID, uuid, taskID)
	}
	if !ok {
		// Orphaned terminal event.
		return
	}
	b.terminate(j, i, ev, status)
}

func (b *builder) findOpenFallback(pid, uuid string, taskID int64) (int, bool) {
	for j := len(b.tasks) - 1; j >= 0; j-- {
		t := &b.tasks[j]
		if t.Status != model.TaskRunning || t.TaskID != taskID || t.ProcessID != pid {
			continue
		}
		if uuid != "" && t.UUID != uuid {
			continue
		}
		return j, true
	}
	return 0, false
}

// terminate closes tasks[j] at event i. Duration is wall clock, not
// monotonic; a clock step during the run skews it and that is accepted.
func (b *builder) terminate(j, i int, ev model.EventNotification, status model.TaskStatus) {
	t := &b.tasks[j]
	t.Status = status
	end := ev.Timestamp
	t.EndTime = &end
	if !t.StartTime.IsZero() && !end.Before(t.StartTime) {
		t.DurationMS = end.Sub(t.StartTime).Milliseconds()
	}
	b.meta[j].last = i
	delete(b.running, triple(t.ProcessID, t.UUID, t.TaskID))
}

// foldNodes slices each task's event sub-range, filtered to its process, and
// folds Node.PipelineNode events into the node list together with whatever
// next-list, recognition and action events accumulated since the prior node.
func (b *builder) foldNodes() {
	for j := range b.tasks {
		b.foldTask(j)
	}
}

func (b *builder) foldTask(j int) {
	t := &b.tasks[j]
	m := b.meta[j]

	var pendingNext []model.NextListItem
	var pendingAttempts []model.RecognitionAttempt
	var pendingAction *model.ActionAttempt
	seen := map[int64]bool{}

	for i := m.first; i <= m.last && i < len(b.events); i++ {
		ev := b.events[i]
		if ev.ProcessID != t.ProcessID {
			continue
		}
		switch ev.Message {
		case model.EventNextListStarting:
			pendingNext = model.NextListFromValue(ev.Details["list"])
		case model.EventRecognitionSucceed, model.EventRecognitionFailed:
			pendingAttempts = append(pendingAttempts, b.attemptFromEvent(ev))
		case model.EventNodeDisabled:
			pendingAttempts = append(pendingAttempts, model.RecognitionAttempt{
				Name:   b.pool.Intern(model.DetailString(ev.Details, "name")),
				Status: model.AttemptDisabled,
			})
		case model.EventActionSucceeded, model.EventActionFailed:
			pendingAction = actionFromValue(ev.Details["action"])
		case model.EventNodeSucceeded, model.EventNodeFailed:
			node, ok := b.nodeFromEvent(t, ev, pendingNext, pendingAttempts, pendingAction)
			pendingNext, pendingAttempts, pendingAction = nil, nil, nil
			if !ok {
				continue
			}
			// A repeated node id within a task is dropped, never
			// overwritten.
			if seen[node.NodeID] {
				continue
			}
			seen[node.NodeID] = true
			t.Nodes = append(t.Nodes, node)
		}
	}
	if t.Nodes == nil {
		t.Nodes = []model.Node{}
	}
}

func (b *builder) attemptFromEvent(ev model.EventNotification) model.RecognitionAttempt {
	status := model.AttemptMiss
	if ev.Message == model.EventRecognitionSucceed {
		status = model.AttemptHit
	}
	recoID, _ := model.DetailInt64(ev.Details, "reco_id")
	return model.RecognitionAttempt{
		Name:      b.pool.Intern(model.DetailString(ev.Details, "name")),
		Algorithm: model.DetailString(ev.Details, "algorithm"),
		RecoID:    recoID,
		Status:    status,
		Box:       model.IntSliceFromValue(ev.Details["box"]),
		Detail:    ev.Details["detail"],
	}
}

func (b *builder) nodeFromEvent(t *model.Task, ev model.EventNotification,
	pendingNext []model.NextListItem, pendingAttempts []model.RecognitionAttempt,
	pendingAction *model.ActionAttempt) (model.Node, bool) {

	name := model.DetailString(ev.Details, "name")
	if name == "" {
		return model.Node{}, false
	}
	nodeID, ok := model.DetailInt64(ev.Details, "node_id")
	if !ok {
		nodeID = int64(len(t.Nodes) + 1)
	}
	status := model.NodeSuccess
	if ev.Message == model.EventNodeFailed {
		status = model.NodeFailed
	}

	node := model.Node{
		NodeID:    nodeID,
		Name:      b.pool.Intern(name),
		Timestamp: ev.Timestamp,
		Status:    status,
		TaskID:    t.TaskID,
	}

	// Typed enrichments placed by the trace-derived dialect win over the
	// events accumulated from explicit markers.
	if v, ok := ev.Details["next_list"].([]model.NextListItem); ok {
		node.NextList = v
	} else if pendingNext != nil {
		node.NextList = pendingNext
	}
	if v, ok := ev.Details["recognition_attempts"].([]model.RecognitionAttempt); ok {
		node.RecognitionAttempts = v
	} else if pendingAttempts != nil {
		node.RecognitionAttempts = pendingAttempts
	}
	if v, ok := ev.Details["nested_attempts"].([]model.RecognitionAttempt); ok {
		node.NestedAttempts = v
	}

	node.Recognition = recoDetailFromValue(ev.Details["reco_details"])
	if a, ok := ev.Details["action_details"].(*model.ActionAttempt); ok {
		node.Action = a
	} else if pendingAction != nil {
		node.Action = pendingAction
	}

	b.internNode(&node)
	if node.NextList == nil {
		node.NextList = []model.NextListItem{}
	}
	if node.RecognitionAttempts == nil {
		node.RecognitionAttempts = []model.RecognitionAttempt{}
	}
	return node, true
}

func (b *builder) internNode(n *model.Node) {
	for i := range n.NextList {
		n.NextList[i].Name = b.pool.Intern(n.NextList[i].Name)
	}
	for i := range n.RecognitionAttempts {
		n.RecognitionAttempts[i].Name = b.pool.Intern(n.RecognitionAttempts[i].Name)
	}
	for i := range n.NestedAttempts {
		n.NestedAttempts[i].Name = b.pool.Intern(n.NestedAttempts[i].Name)
	}
}

// recoDetailFromValue accepts the typed detail the trace dialect emits or
// the generic JSON object an explicit marker carried.
func recoDetailFromValue(v interface{}) *model.RecognitionDetail {
	switch d := v.(type) {
	case *model.RecognitionDetail:
		return d
	case map[string]interface{}:
		recoID, _ := model.DetailInt64(d, "reco_id")
		return &model.RecognitionDetail{
			Algorithm: model.DetailString(d, "algorithm"),
			RecoID:    recoID,
			Box:       model.IntSliceFromValue(d["box"]),
			Detail:    d["detail"],
		}
	}
	return nil
}

func actionFromValue(v interface{}) *model.ActionAttempt {
	d, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	typ := model.DetailString(d, "type")
	if typ == "" {
		return nil
	}
	params, _ := d["params"].(map[string]interface{})
	return &model.ActionAttempt{Type: typ, Params: params}
}

// finish filters the sentinel bookkeeping entry and returns the task list.
// Tasks are never explicitly destroyed upstream; filtering happens only here.
func (b *builder) finish() []model.Task {
	out := make([]model.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		if t.Entry == SentinelEntry {
			continue
		}
		out = append(out, t)
	}
	return out
}
