// Package metadata defines the per-execution MetadataRecord threaded
// alongside every State, and the LogEntry records accumulated while a plan
// executes.
package metadata

import (
	"time"

	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/query"
)

// Status is the lifecycle state of an evaluated or stored artifact.
type Status string

const (
	StatusNone       Status = "None"
	StatusSubmitted  Status = "Submitted"
	StatusEvaluation Status = "Evaluation"
	StatusReady      Status = "Ready"
	StatusExpired    Status = "Expired"
	StatusError      Status = "Error"
	StatusSource     Status = "Source"
	StatusRecipe     Status = "Recipe"
	StatusExternal   Status = "External"
)

// Level is the severity of a LogEntry.
type Level string

const (
	LevelDebug   Level = "Debug"
	LevelInfo    Level = "Info"
	LevelWarning Level = "Warning"
	LevelError   Level = "Error"
)

// Severity orders levels for filtering: Debug < Info < Warning < Error.
func Severity(l Level) int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarning:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

// LogEntry is one message appended to a MetadataRecord's log during
// evaluation.
type LogEntry struct {
	Level              Level
	Message            string
	Timestamp          time.Time
	OriginatingPosition query.Position
}

// AssetInfo is a summary of a child asset, used to populate
// MetadataRecord.Children for directory-like keys.
type AssetInfo struct {
	Key      query.Key
	Status   Status
	IsDir    bool
	FileSize int64
}

// Record is the mutable-during-execution, frozen-when-attached metadata
// carried alongside a State. Field names follow spec.md §3 MetadataRecord.
type Record struct {
	Query         string
	Key           query.Key
	Status        Status
	TypeIdentifier string
	DataFormat    string
	Message       string
	IsError       bool
	ErrorData     *lqerror.Error
	MediaType     string
	Filename      string
	FileSize      int64
	IsDir         bool
	UnicodeIcon   string
	Children      []AssetInfo
	Log           []LogEntry
}

// New returns an empty Record in StatusNone.
func New() *Record {
	return &Record{Status: StatusNone}
}

// Clone returns a deep-enough copy of r safe for independent mutation: Log
// and Children are copied, ErrorData is shared (immutable once set).
func (r *Record) Clone() *Record {
	if r == nil {
		return New()
	}
	c := *r
	c.Log = append([]LogEntry(nil), r.Log...)
	c.Children = append([]AssetInfo(nil), r.Children...)
	return &c
}

// Append adds a log entry. It does not change Status or IsError; callers
// that want to record an error use SetError.
func (r *Record) Append(level Level, message string, pos query.Position) {
	r.Log = append(r.Log, LogEntry{Level: level, Message: message, Timestamp: time.Now(), OriginatingPosition: pos})
}

// SetError attaches err as the record's terminal error. Once set, IsError
// stays true and ErrorData is not cleared by subsequent log entries;
// repeated calls keep the first error (the interpreter stops executing the
// plan after the first failing step, so in practice this fires at most
// once per Record, but commands that catch and continue must not call it
// twice).
func (r *Record) SetError(err *lqerror.Error) {
	if r.IsError {
		return
	}
	r.IsError = true
	r.ErrorData = err
	r.Status = StatusError
	if err != nil {
		r.Message = err.Message
	}
}
