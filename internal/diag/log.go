package diag

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
)

// Owner is what a message is attached to: a whole table or a single row.
// Both *dataset.Table and *dataset.Row satisfy it.
type Owner interface {
	TableName() string
	RowID() (int64, bool)
}

// Sink receives diagnostic messages
type Sink interface {
	LogMessage(owner Owner, text string, severity Severity, err error)
}

// Log is the Sink backed by a dataset's Message table
type Log struct {
	messages *dataset.Table
}

// NewLog returns a Log that appends to ds's Message table
func NewLog(ds *dataset.Dataset) *Log {
	return &Log{messages: ds.Table(dataset.TableMessage)}
}

// LogMessage appends one message. For Exception severity the error's type,
// message and the current stack are captured.
func (l *Log) LogMessage(owner Owner, text string, severity Severity, err error) {
	row := l.messages.NewRow()
	if owner != nil {
		row.Set("TableName", owner.TableName())
		if id, ok := owner.RowID(); ok {
			row.Set("TableRow", id)
		}
	}
	row.Set("Severity", severity.String())
	row.Set("Message", text)

	if err == nil {
		return
	}
	row.Set("ExceptionType", errorType(err))
	row.Set("ExceptionMessage", err.Error())
	if severity == Exception {
		row.Set("StackTrace", string(debug.Stack()))
	}
}

// errorType names the innermost wrapped error's concrete type
func errorType(err error) string {
	root := err
	for {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}
	return fmt.Sprintf("%T", root)
}

// LogVerbose records a Verbose message against owner
func LogVerbose(s Sink, owner Owner, format string, args ...any) {
	s.LogMessage(owner, fmt.Sprintf(format, args...), Verbose, nil)
}

// LogInfo records an Info message against owner
func LogInfo(s Sink, owner Owner, format string, args ...any) {
	s.LogMessage(owner, fmt.Sprintf(format, args...), Info, nil)
}

// LogWarning records a Warning message against owner
func LogWarning(s Sink, owner Owner, format string, args ...any) {
	s.LogMessage(owner, fmt.Sprintf(format, args...), Warning, nil)
}

// LogCritical records a Critical message against owner
func LogCritical(s Sink, owner Owner, format string, args ...any) {
	s.LogMessage(owner, fmt.Sprintf(format, args...), Critical, nil)
}

// LogException records a failed probe or sub-task against owner
func LogException(s Sink, owner Owner, err error, format string, args ...any) {
	s.LogMessage(owner, fmt.Sprintf(format, args...), Exception, err)
}

// LogHeading records a Heading message against owner
func LogHeading(s Sink, owner Owner, format string, args ...any) {
	s.LogMessage(owner, fmt.Sprintf(format, args...), Heading, nil)
}

// CheckRange parses value as a decimal or 0x-prefixed hex integer and logs a
// Critical message against owner when it falls outside [low, high]. A value
// that does not parse is treated as 0 without any message of its own.
func CheckRange(s Sink, owner Owner, name, value string, low, high int64) int64 {
	n := ParseInt(value)
	if n < low || n > high {
		LogCritical(s, owner, "%s value %d is outside the expected range %d to %d", name, n, low, high)
	}
	return n
}

// ParseInt reads a decimal or 0x hex string, returning 0 when it does not parse
func ParseInt(value string) int64 {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0
	}
	base := 10
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		v, base = v[2:], 16
	}
	n, err := strconv.ParseInt(v, base, 64)
	if err != nil {
		return 0
	}
	return n
}
