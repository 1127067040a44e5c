// Package snapshot owns the versioned snapshot payload format and the backup
// file naming convention. Encoding and decoding are pure: no disk or network
// access.
package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"todokeep/store"
)

// SchemaVersion is the current snapshot payload schema version.
const SchemaVersion = 1

// MimeType is the content type of snapshot payloads as stored remotely.
const MimeType = "application/json"

const (
	namePrefix = "TodoBackup_"
	nameExt    = ".json"

	// timestampLayout matches the millisecond-precision ISO-8601 form the
	// payload and file names carry.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// AppVersion is stamped into encoded snapshots when set at build time.
// Informational only; decode ignores it.
var AppVersion = ""

// Snapshot is an immutable point-in-time copy of the task collection plus
// metadata.
type Snapshot struct {
	SchemaVersion int          `json:"schemaVersion"`
	Timestamp     string       `json:"timestamp"`
	Tasks         []store.Task `json:"todos"`
	AppVersion    string       `json:"appVersion,omitempty"`
}

// DecodeError reports a malformed snapshot payload.
type DecodeError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid snapshot payload: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid snapshot payload: %s", e.Reason)
}

// Unwrap returns the underlying error for error chain support.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UnsupportedSchemaError reports a payload written by a newer schema than
// this build understands.
type UnsupportedSchemaError struct {
	Version int
}

// Error implements the error interface.
func (e *UnsupportedSchemaError) Error() string {
	return fmt.Sprintf("snapshot schema version %d is newer than supported version %d", e.Version, SchemaVersion)
}

// Encode serializes a deep copy of tasks with the given timestamp into the
// current schema. It returns the payload bytes and the Snapshot they encode.
func Encode(tasks []store.Task, now time.Time) ([]byte, Snapshot, error) {
	copied := make([]store.Task, len(tasks))
	copy(copied, tasks)

	snap := Snapshot{
		SchemaVersion: SchemaVersion,
		Timestamp:     Timestamp(now),
		Tasks:         copied,
		AppVersion:    AppVersion,
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, Snapshot{}, err
	}
	return data, snap, nil
}

// Decode parses payload bytes into a Snapshot. Payloads missing the tasks
// sequence or the timestamp are rejected with DecodeError; payloads from a
// newer schema are rejected with UnsupportedSchemaError. A missing
// schemaVersion field is treated as version 1 for backward compatibility
// with legacy payloads.
func Decode(data []byte) (*Snapshot, error) {
	var raw struct {
		SchemaVersion *int          `json:"schemaVersion"`
		Timestamp     string        `json:"timestamp"`
		Todos         *[]store.Task `json:"todos"`
		Tasks         *[]store.Task `json:"tasks"`
		AppVersion    string        `json:"appVersion"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Reason: "malformed JSON", Err: err}
	}

	version := 1
	if raw.SchemaVersion != nil {
		version = *raw.SchemaVersion
	}
	if version > SchemaVersion {
		return nil, &UnsupportedSchemaError{Version: version}
	}

	// Legacy payloads used "tasks" for the collection key
	tasks := raw.Todos
	if tasks == nil {
		tasks = raw.Tasks
	}
	if tasks == nil {
		return nil, &DecodeError{Reason: "missing tasks sequence"}
	}

	if raw.Timestamp == "" {
		return nil, &DecodeError{Reason: "missing timestamp"}
	}

	return &Snapshot{
		SchemaVersion: version,
		Timestamp:     raw.Timestamp,
		Tasks:         *tasks,
		AppVersion:    raw.AppVersion,
	}, nil
}

// Timestamp formats t in the ISO-8601 form carried by snapshot payloads.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// BackupName returns the remote file name for a backup taken at t:
// the fixed prefix, the timestamp with ':' and '.' replaced by '_', and the
// fixed extension. Other tools match on this convention.
func BackupName(t time.Time) string {
	escaped := strings.NewReplacer(":", "_", ".", "_").Replace(Timestamp(t))
	return namePrefix + escaped + nameExt
}

// IsBackupName reports whether a remote file name follows the backup naming
// convention.
func IsBackupName(name string) bool {
	return strings.HasPrefix(name, namePrefix) && strings.HasSuffix(name, nameExt)
}

// ParseBackupName extracts the backup timestamp from a conventional file
// name. Names outside the convention are an error.
func ParseBackupName(name string) (time.Time, error) {
	if !IsBackupName(name) {
		return time.Time{}, fmt.Errorf("not a backup file name: %s", name)
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), nameExt)
	if len(stamp) != len(timestampLayout) {
		return time.Time{}, fmt.Errorf("unparseable timestamp in backup name %s", name)
	}

	// Undo the name escaping before parsing. The escaping is lossy (':' and
	// '.' both became '_'), but their positions in the layout are fixed.
	wire := []byte(stamp)
	wire[13], wire[16], wire[19] = ':', ':', '.'

	t, err := time.Parse(timestampLayout, string(wire))
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable timestamp in backup name %s: %w", name, err)
	}
	return t.UTC(), nil
}
