// Package model provides the shared data model for the log reconstruction
// engine: tokenized log lines, lifecycle event notifications, and the
// task/node tree the builder produces. This package exists so the parse,
// dialect, build and correlate packages can exchange values without import
// cycles; types here are plain data with no behavior beyond small helpers.
package model

import "time"

// Log levels as they appear in the bracket header, e.g. [INF].
const (
	LevelTrace = "TRC"
	LevelDebug = "DBG"
	LevelInfo  = "INF"
	LevelWarn  = "WRN"
	LevelError = "ERR"
)

// LogLine is one tokenized source line. It is ephemeral: dialect extractors
// consume it and discard it, only EventNotification values survive.
type LogLine struct {
	Timestamp    time.Time
	Level        string
	ProcessID    string
	ThreadID     string
	SourceFile   string
	LineNumber   int
	FunctionName string
	Message      string
	Params       map[string]interface{}
	Status       string // "enter", "leave" or ""
	DurationMS   int64  // only meaningful when Status == "leave"
}

// EventNotification is one lifecycle event, independent of which dialect
// produced it. Details may be enriched in place (next_list,
// recognition_attempts, action_details) while the event is still open;
// readers downstream of the dialect pass always see the enriched form.
type EventNotification struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details"`
	ProcessID string                 `json:"process_id"`
	ThreadID  string                 `json:"thread_id"`
	FileName  string                 `json:"file_name,omitempty"`
	Line      int                    `json:"line,omitempty"`
}

// Lifecycle event messages. The explicit-event dialect carries these verbatim
// in its msg param; the trace-derived dialect synthesizes them.
const (
	EventTaskStarting  = "Tasker.Task.Starting"
	EventTaskSucceeded = "Tasker.Task.Succeeded"
	EventTaskFailed    = "Tasker.Task.Failed"

	EventNodeSucceeded = "Node.PipelineNode.Succeeded"
	EventNodeFailed    = "Node.PipelineNode.Failed"

	EventNextListStarting    = "Node.NextList.Starting"
	EventRecognitionStarting = "Node.Recognition.Starting"
	EventRecognitionSucceed  = "Node.Recognition.Succeeded"
	EventRecognitionFailed   = "Node.Recognition.Failed"
	EventActionSucceeded     = "Node.Action.Succeeded"
	EventActionFailed        = "Node.Action.Failed"

	// EventNodeDisabled is synthetic: the source logs only a
	// "node disabled <name>" trace, never an aggregated marker.
	EventNodeDisabled = "Node.Disabled"
)

// TaskStatus is the lifecycle state of a reconstructed task.
type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Task is one reconstructed framework task. TaskID is assigned by the
// framework and is reused across processes and over time; Key is unique
// within one analysis run.
type Task struct {
	Key        string          `json:"key"`
	TaskID     int64           `json:"task_id"`
	Entry      string          `json:"entry"`
	Hash       string          `json:"hash,omitempty"`
	UUID       string          `json:"uuid,omitempty"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    *time.Time      `json:"end_time,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	Status     TaskStatus      `json:"status"`
	ProcessID  string          `json:"process_id"`
	ThreadID   string          `json:"thread_id"`
	Identifier string          `json:"identifier,omitempty"`
	Controller *ControllerInfo `json:"controller,omitempty"`
	Nodes      []Node          `json:"nodes"`
}

// NodeStatus is the outcome of one pipeline node execution.
type NodeStatus string

const (
	NodeSuccess NodeStatus = "success"
	NodeFailed  NodeStatus = "failed"
)

// Node is one executed pipeline step. NodeID is unique only within its task.
type Node struct {
	NodeID              int64                `json:"node_id"`
	Name                string               `json:"name"`
	Timestamp           time.Time            `json:"timestamp"`
	Status              NodeStatus           `json:"status"`
	TaskID              int64                `json:"task_id"`
	Recognition         *RecognitionDetail   `json:"recognition,omitempty"`
	Action              *ActionAttempt       `json:"action,omitempty"`
	NextList            []NextListItem       `json:"next_list"`
	RecognitionAttempts []RecognitionAttempt `json:"recognition_attempts"`
	NestedAttempts      []RecognitionAttempt `json:"nested_attempts,omitempty"`
}

// AttemptStatus distinguishes hit, miss, and disabled recognition attempts.
// A disabled node is neither success nor failure; it was never tried.
type AttemptStatus string

const (
	AttemptHit      AttemptStatus = "hit"
	AttemptMiss     AttemptStatus = "miss"
	AttemptDisabled AttemptStatus = "disabled"
)

// RecognitionAttempt is one recognition try for one candidate node.
// Order among siblings is chronological; Nested holds sub-recognitions
// performed inside a custom recognition's own logic.
type RecognitionAttempt struct {
	Name      string               `json:"name"`
	Algorithm string               `json:"algorithm,omitempty"`
	RecoID    int64                `json:"reco_id,omitempty"`
	Status    AttemptStatus        `json:"status"`
	Box       []int                `json:"box,omitempty"`
	Detail    interface{}          `json:"detail,omitempty"`
	Nested    []RecognitionAttempt `json:"nested,omitempty"`
}

// RecognitionDetail describes the recognition that produced a node hit.
type RecognitionDetail struct {
	Algorithm string      `json:"algorithm,omitempty"`
	RecoID    int64       `json:"reco_id,omitempty"`
	Box       []int       `json:"box,omitempty"`
	Detail    interface{} `json:"detail,omitempty"`
}

// ActionAttempt is one controller action. Nested holds the follow-up actions
// of a composite action, in chronological order.
type ActionAttempt struct {
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params,omitempty"`
	Nested []ActionAttempt        `json:"nested,omitempty"`
}

// NextListItem is one candidate in a node's next list. Anchor and JumpBack
// are independent flags; order within the list is significant.
type NextListItem struct {
	Name     string `json:"name"`
	Anchor   bool   `json:"anchor,omitempty"`
	JumpBack bool   `json:"jump_back,omitempty"`
}

// Controller types.
const (
	ControllerAdb   = "adb"
	ControllerWin32 = "win32"
)

// ControllerInfo describes the device controller of one process. Exactly one
// of Adb or Win32 is set, discriminated by Type. The same value is
// cross-referenced onto every task sharing the process id.
type ControllerInfo struct {
	Type      string               `json:"type"`
	ProcessID string               `json:"process_id"`
	Adb       *AdbControllerInfo   `json:"adb,omitempty"`
	Win32     *Win32ControllerInfo `json:"win32,omitempty"`
}

// AdbControllerInfo is the adb-backed controller configuration.
type AdbControllerInfo struct {
	AdbPath          string   `json:"adb_path,omitempty"`
	Address          string   `json:"address,omitempty"`
	ScreencapMask    uint64   `json:"screencap_mask"`
	InputMask        uint64   `json:"input_mask"`
	ScreencapMethods []string `json:"screencap_methods"`
	InputMethods     []string `json:"input_methods"`
}

// Win32ControllerInfo is the win32-backed controller configuration.
type Win32ControllerInfo struct {
	HWnd            string   `json:"hwnd,omitempty"`
	ClassName       string   `json:"class_name,omitempty"`
	WindowName      string   `json:"window_name,omitempty"`
	ScreencapMask   uint64   `json:"screencap_mask"`
	InputMask       uint64   `json:"input_mask"`
	ScreencapMethod []string `json:"screencap_method"`
	InputMethod     []string `json:"input_method"`
}

// Correlation verdicts.
const (
	CorrelationMatched   = "matched"
	CorrelationUnmatched = "unmatched"

	StrategyIdentifier = "identifier_match"
	StrategyTaskID     = "task_id_match"
	StrategyTimeWindow = "time_window_match"
	StrategyNone       = "no_matching_task"
)

// Correlation is the match verdict attached to an auxiliary entry. The
// matched task is referenced by key; the task itself is never mutated.
type Correlation struct {
	Status   string  `json:"status"`
	Strategy string  `json:"strategy"`
	TaskKey  string  `json:"task_key,omitempty"`
	Score    float64 `json:"score"`
}

// AuxLogEntry is one independently parsed secondary-process log record.
// Identifier, TaskID and TimestampMS are optional correlation hints; Fields
// carries everything else through untouched.
type AuxLogEntry struct {
	Raw         string                 `json:"raw"`
	Message     string                 `json:"message"`
	Level       string                 `json:"level,omitempty"`
	Identifier  string                 `json:"identifier,omitempty"`
	TaskID      *int64                 `json:"task_id,omitempty"`
	TimestampMS *int64                 `json:"timestamp_ms,omitempty"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
	Correlation *Correlation           `json:"correlation,omitempty"`
}
