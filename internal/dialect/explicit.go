package dialect

import (
	"strings"

	"loglens/internal/model"
)

// markerPrefixes are the dotted lifecycle messages the explicit-event dialect
// logs verbatim inside [msg=...] params.
var markerPrefixes = []string{
	"Tasker.Task.",
	"Node.PipelineNode.",
	"Node.NextList.",
	"Node.Recognition.",
	"Node.Action.",
}

func knownMarker(msg string) bool {
	for _, p := range markerPrefixes {
		if strings.HasPrefix(msg, p) {
			return true
		}
	}
	return false
}

// explicitExtractor projects one event per marker line. The only synthesis
// it performs is Node.Disabled: the source logs node disablement as a plain
// trace, never as a marker, and downstream handling wants it uniform.
type explicitExtractor struct {
	events []model.EventNotification
	amb    *ambient
}

func newExplicitExtractor() *explicitExtractor {
	return &explicitExtractor{amb: newAmbient()}
}

func (e *explicitExtractor) Kind() Kind { return KindExplicit }
func (e *explicitExtractor) sealed()    {}

func (e *explicitExtractor) Feed(l model.LogLine) {
	if msg := model.DetailString(l.Params, "msg"); msg != "" && knownMarker(msg) {
		details, _ := l.Params["details"].(map[string]interface{})
		if details == nil {
			details = map[string]interface{}{}
		}
		e.events = append(e.events, eventFromLine(l, msg, details))
		return
	}

	if name, ok := disabledNodeName(l.Message); ok {
		e.events = append(e.events, eventFromLine(l, model.EventNodeDisabled,
			map[string]interface{}{"name": name}))
		return
	}

	e.amb.scan(l)
}

func (e *explicitExtractor) Finish() Result {
	controllers, ids := e.amb.result()
	return Result{Events: e.events, Controllers: controllers, Identifiers: ids}
}

// disabledTrace prefixes the "node disabled <name>" trace line.
const disabledTrace = "node disabled "

func disabledNodeName(msg string) (string, bool) {
	if !strings.HasPrefix(msg, disabledTrace) {
		return "", false
	}
	name := strings.TrimSpace(strings.TrimPrefix(msg, disabledTrace))
	return name, name != ""
}

func eventFromLine(l model.LogLine, msg string, details map[string]interface{}) model.EventNotification {
	return model.EventNotification{
		Timestamp: l.Timestamp,
		Level:     l.Level,
		Message:   msg,
		Details:   details,
		ProcessID: l.ProcessID,
		ThreadID:  l.ThreadID,
		FileName:  l.SourceFile,
		Line:      l.LineNumber,
	}
}
