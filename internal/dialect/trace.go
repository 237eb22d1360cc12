package dialect

import (
	"strings"

	"loglens/internal/model"
	"loglens/internal/parse"
)

// Trace tokens. The trace-derived dialect logs no aggregated markers; these
// are the function enter/leave and algorithm-result lines the extractor
// synthesizes lifecycle events from.
const (
	fnRunTask    = "Tasker::run_task"
	fnRecognize  = "Recognizer::recognize"
	fnCtxRunReco = "Context::run_recognition"
	fnActuator   = "Actuator::run"

	fnTemplateMatch = "TemplateMatcher::analyze"
	fnOCR           = "OCRer::analyze"

	fnClick = "Controller::click"
	fnSwipe = "Controller::swipe"
	fnSleep = "Actuator::sleep"

	// The custom-recognition analyze family is identified by this name
	// parameter, not by a message token.
	paramCustomReco = "custom_recognition"

	traceNodeHit = "pipeline hit node"
)

// recoResult is the cached outcome of the latest analyze trace per node name.
type recoResult struct {
	algorithm string
	box       []int
	detail    interface{}
	recoID    int64
}

// pendingScan is one open run-recognition context: the node doing the scan,
// its next-candidate list, and the attempts accumulated so far.
type pendingScan struct {
	node     string
	next     []model.NextListItem
	attempts []model.RecognitionAttempt
}

// nestedCtx marks that analyze results currently originate inside another
// recognition's own logic. parent names the node the nested attempts belong
// to; it may not have been emitted yet.
type nestedCtx struct {
	parent string
	entry  string
}

// actionContext accumulates controller actions between an actuator enter and
// its matching leave, per process.
type actionContext struct {
	node    string
	actions []model.ActionAttempt
}

// traceExtractor reconstructs the explicit-event stream from low-level
// traces in one forward pass. Events live in an append-only arena; the
// look-back enrichment (action attachment, nested-attempt flushing) mutates
// them by index, never through shared references.
type traceExtractor struct {
	events []model.EventNotification
	amb    *ambient

	taskByThread map[string]int64
	recoCache    map[string]recoResult

	scan     *pendingScan
	lastScan *pendingScan // just-closed scan, consumed by the following hit

	nested []nestedCtx // stack; top is the active nested context

	actions map[string]*actionContext // keyed by process id

	// nodeIndex maps a node name to the arena index of its latest hit
	// event; pendingNested queues attempts whose parent is not emitted yet.
	nodeIndex     map[string]int
	pendingNested map[string][]model.RecognitionAttempt

	nodeSeq map[string]int64 // per-process monotonic node ids
}

func newTraceExtractor() *traceExtractor {
	return &traceExtractor{
		amb:           newAmbient(),
		taskByThread:  map[string]int64{},
		recoCache:     map[string]recoResult{},
		actions:       map[string]*actionContext{},
		nodeIndex:     map[string]int{},
		pendingNested: map[string][]model.RecognitionAttempt{},
		nodeSeq:       map[string]int64{},
	}
}

func (t *traceExtractor) Kind() Kind { return KindTrace }
func (t *traceExtractor) sealed()    {}

// is matches a trace token against either the tokenized function-name field
// or the message body; sources differ on which one carries it.
func is(l model.LogLine, token string) bool {
	return l.FunctionName == token || strings.Contains(l.Message, token)
}

func (t *traceExtractor) Feed(l model.LogLine) {
	switch l.Status {
	case "enter":
		t.onEnter(l)
	case "leave":
		t.onLeave(l)
	default:
		t.onTrace(l)
	}
}

func (t *traceExtractor) onEnter(l model.LogLine) {
	switch {
	case is(l, fnRunTask):
		t.openTask(l)
	case is(l, fnCtxRunReco):
		// Run-recognition-by-entry-name: a custom recognition invoking
		// the pipeline from inside its own logic. Distinct from the
		// standard scan trace.
		parent := model.DetailString(l.Params, "node")
		if parent == "" && t.scan != nil {
			parent = t.scan.node
		}
		t.nested = append(t.nested, nestedCtx{
			parent: parent,
			entry:  model.DetailString(l.Params, "entry"),
		})
	case is(l, fnRecognize):
		t.scan = &pendingScan{
			node: model.DetailString(l.Params, "node"),
			next: model.NextListFromValue(l.Params["next_list"]),
		}
	case is(l, fnActuator):
		if node := model.DetailString(l.Params, "node"); node != "" {
			t.actions[l.ProcessID] = &actionContext{node: node}
		}
	default:
		t.amb.scan(l)
	}
}

func (t *traceExtractor) onLeave(l model.LogLine) {
	switch {
	case is(l, fnRunTask):
		t.closeTask(l)
	case is(l, fnCtxRunReco):
		if n := len(t.nested); n > 0 {
			t.nested = t.nested[:n-1]
		}
	case is(l, fnRecognize):
		t.lastScan = t.scan
		t.scan = nil
	case is(l, fnActuator):
		t.closeActions(l.ProcessID)
	case t.maybeAnalyze(l):
	case t.maybeAction(l):
	default:
		t.amb.scan(l)
	}
}

func (t *traceExtractor) onTrace(l model.LogLine) {
	switch {
	case strings.Contains(l.Message, traceNodeHit):
		t.onNodeHit(l)
	case t.maybeDisabled(l):
	case t.maybeAction(l):
	default:
		t.amb.scan(l)
	}
}

func (t *traceExtractor) openTask(l model.LogLine) {
	taskID, _ := model.DetailInt64(l.Params, "task_id")
	t.taskByThread[l.ThreadID] = taskID
	t.emit(eventFromLine(l, model.EventTaskStarting, map[string]interface{}{
		"task_id": taskID,
		"entry":   model.DetailString(l.Params, "entry"),
		"hash":    model.DetailString(l.Params, "hash"),
		"uuid":    model.DetailString(l.Params, "uuid"),
	}))
}

func (t *traceExtractor) closeTask(l model.LogLine) {
	taskID, ok := model.DetailInt64(l.Params, "task_id")
	if !ok {
		taskID = t.taskByThread[l.ThreadID]
	}
	msg := model.EventTaskFailed
	if model.DetailString(l.Params, "status") == "succeeded" || model.DetailBool(l.Params, "ret") {
		msg = model.EventTaskSucceeded
	}
	t.emit(eventFromLine(l, msg, map[string]interface{}{
		"task_id": taskID,
		"uuid":    model.DetailString(l.Params, "uuid"),
	}))
}

// maybeAnalyze handles the three analyze-trace families. All of them refresh
// the per-name recognition cache; where the result lands depends on the open
// contexts.
func (t *traceExtractor) maybeAnalyze(l model.LogLine) bool {
	var algorithm, name string
	switch {
	case is(l, fnTemplateMatch):
		algorithm = "TemplateMatch"
		name = model.DetailString(l.Params, "name")
	case is(l, fnOCR):
		algorithm = "OCR"
		name = model.DetailString(l.Params, "name")
	case model.DetailString(l.Params, paramCustomReco) != "":
		algorithm = "Custom"
		name = model.DetailString(l.Params, paramCustomReco)
	default:
		return false
	}
	if name == "" {
		return true
	}

	box := boxValue(l.Params["box"])
	recoID, _ := model.DetailInt64(l.Params, "reco_id")
	detail := l.Params["detail"]

	t.recoCache[name] = recoResult{
		algorithm: algorithm,
		box:       box,
		detail:    detail,
		recoID:    recoID,
	}

	status := model.AttemptMiss
	if model.DetailBool(l.Params, "hit") || box != nil {
		status = model.AttemptHit
	}
	t.routeAttempt(model.RecognitionAttempt{
		Name:      name,
		Algorithm: algorithm,
		RecoID:    recoID,
		Status:    status,
		Box:       box,
		Detail:    detail,
	})
	return true
}

// routeAttempt sends one recognition attempt wherever the open contexts say
// it belongs: nested under its parent node while a nested context is active,
// onto the open scan otherwise.
func (t *traceExtractor) routeAttempt(att model.RecognitionAttempt) {
	if n := len(t.nested); n > 0 {
		t.attachNested(t.nested[n-1].parent, att)
		return
	}
	if t.scan != nil {
		t.scan.attempts = append(t.scan.attempts, att)
	}
}

// attachNested appends att under the parent's latest hit event, or queues it
// until the parent is emitted. A parent that never emits keeps its queue
// forever; that is the orphan policy.
func (t *traceExtractor) attachNested(parent string, att model.RecognitionAttempt) {
	if parent == "" {
		return
	}
	idx, ok := t.nodeIndex[parent]
	if !ok {
		t.pendingNested[parent] = append(t.pendingNested[parent], att)
		return
	}
	d := t.events[idx].Details
	nested, _ := d["nested_attempts"].([]model.RecognitionAttempt)
	d["nested_attempts"] = append(nested, att)
}

// onNodeHit is the synthesis trigger: one hit trace becomes one
// Node.PipelineNode.Succeeded event with a fresh process-wide node id.
func (t *traceExtractor) onNodeHit(l model.LogLine) {
	name := model.DetailString(l.Params, "name")
	if name == "" {
		return
	}
	rawBox := boxValue(l.Params["box"])

	// Inside a nested recognition the hit is a sub-result, not a new
	// top-level node.
	if n := len(t.nested); n > 0 {
		status := model.AttemptHit
		t.attachNested(t.nested[n-1].parent, model.RecognitionAttempt{
			Name:   name,
			Status: status,
			Box:    rawBox,
		})
		return
	}

	t.nodeSeq[l.ProcessID]++
	details := map[string]interface{}{
		"name":    name,
		"node_id": t.nodeSeq[l.ProcessID],
		"task_id": t.taskByThread[l.ThreadID],
	}

	if reco := t.recoDetails(name, rawBox); reco != nil {
		details["reco_details"] = reco
	}

	if s := t.consumeScan(); s != nil {
		// A hit on the sole candidate is a zero-choice branch; next
		// list and attempts would be vacuous, so they are suppressed.
		direct := len(s.next) == 1 && s.next[0].Name == name
		if !direct {
			details["next_list"] = s.next
			details["recognition_attempts"] = s.attempts
		}
	}

	idx := t.emit(eventFromLine(l, model.EventNodeSucceeded, details))
	t.nodeIndex[name] = idx
	t.flushNested(name, idx)
}

// recoDetails prefers the cached algorithm result over the raw hit box.
func (t *traceExtractor) recoDetails(name string, rawBox []int) *model.RecognitionDetail {
	if c, ok := t.recoCache[name]; ok {
		box := c.box
		if box == nil {
			box = rawBox
		}
		return &model.RecognitionDetail{
			Algorithm: c.algorithm,
			RecoID:    c.recoID,
			Box:       box,
			Detail:    c.detail,
		}
	}
	if rawBox != nil {
		return &model.RecognitionDetail{Box: rawBox}
	}
	return nil
}

// consumeScan takes the open scan, or the one that closed just before this
// hit, and resets both.
func (t *traceExtractor) consumeScan() *pendingScan {
	s := t.scan
	if s == nil {
		s = t.lastScan
	}
	t.scan = nil
	t.lastScan = nil
	return s
}

func (t *traceExtractor) flushNested(name string, idx int) {
	queued := t.pendingNested[name]
	if len(queued) == 0 {
		return
	}
	delete(t.pendingNested, name)
	d := t.events[idx].Details
	nested, _ := d["nested_attempts"].([]model.RecognitionAttempt)
	d["nested_attempts"] = append(nested, queued...)
}

// maybeDisabled records a disabled candidate while a scan is open. Disabled
// is its own attempt status: the node was never tried.
func (t *traceExtractor) maybeDisabled(l model.LogLine) bool {
	name, ok := disabledNodeName(l.Message)
	if !ok {
		return false
	}
	if t.scan != nil {
		t.scan.attempts = append(t.scan.attempts, model.RecognitionAttempt{
			Name:   name,
			Status: model.AttemptDisabled,
		})
	}
	return true
}

// maybeAction accumulates click/swipe/sleep traces into the process's open
// action context. Without an open context they are stray and ignored.
func (t *traceExtractor) maybeAction(l model.LogLine) bool {
	ctx := t.actions[l.ProcessID]
	var act model.ActionAttempt
	switch {
	case is(l, fnClick):
		act = model.ActionAttempt{Type: "click", Params: pickParams(l.Params, "point")}
	case is(l, fnSwipe):
		act = model.ActionAttempt{Type: "swipe", Params: pickParams(l.Params, "begin", "end", "duration")}
	case is(l, fnSleep):
		act = model.ActionAttempt{Type: "sleep", Params: pickParams(l.Params, "ms")}
	default:
		return false
	}
	if ctx != nil {
		ctx.actions = append(ctx.actions, act)
	}
	return true
}

// closeActions resolves an actuator leave: the first non-sleep action becomes
// the node's action, the rest nest under it in order. Attachment is a
// look-back by arena index onto the node's already-emitted hit event; when
// that event was never emitted the whole context is dropped.
func (t *traceExtractor) closeActions(pid string) {
	ctx := t.actions[pid]
	if ctx == nil {
		return
	}
	delete(t.actions, pid)

	first := -1
	for i, a := range ctx.actions {
		if a.Type != "sleep" {
			first = i
			break
		}
	}
	if first < 0 {
		return
	}
	idx, ok := t.nodeIndex[ctx.node]
	if !ok {
		return
	}

	act := ctx.actions[first]
	if rest := ctx.actions[first+1:]; len(rest) > 0 {
		act.Nested = append([]model.ActionAttempt{}, rest...)
	}
	t.events[idx].Details["action_details"] = &act
}

func (t *traceExtractor) emit(ev model.EventNotification) int {
	t.events = append(t.events, ev)
	return len(t.events) - 1
}

func (t *traceExtractor) Finish() Result {
	controllers, ids := t.amb.result()
	return Result{Events: t.events, Controllers: controllers, Identifiers: ids}
}

func pickParams(params map[string]interface{}, keys ...string) map[string]interface{} {
	out := map[string]interface{}{}
	for _, k := range keys {
		if v, ok := params[k]; ok {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// boxValue accepts the two encodings a box is logged in: a raw
// "[W x H from (X, Y)]" string or a JSON [x, y, w, h] array.
func boxValue(v interface{}) []int {
	if s, ok := v.(string); ok {
		return parse.ParseBox(s)
	}
	if box := model.IntSliceFromValue(v); len(box) == 4 {
		return box
	}
	return nil
}
