package models

import (
	"fmt"
	"time"
)

// FileAction is the classification of a scanned file against the target mirror
type FileAction uint8

const (
	// ActionNew means the file is absent at the target
	ActionNew FileAction = iota
	// ActionUpdated means the target copy is stale or different
	ActionUpdated
	// ActionSkipped means the target copy is equivalent
	ActionSkipped
	// ActionError means the file could not be read, compared or resolved
	ActionError
)

var actionNames = [...]string{
	ActionNew:     "new",
	ActionUpdated: "updated",
	ActionSkipped: "skipped",
	ActionError:   "error",
}

// Valid reports whether a is one of the defined actions
func (a FileAction) Valid() bool {
	return int(a) < len(actionNames)
}

func (a FileAction) String() string {
	if !a.Valid() {
		return fmt.Sprintf("FileAction(%d)", uint8(a))
	}
	return actionNames[a]
}

// IsActionable reports whether a file with this action must be copied
func (a FileAction) IsActionable() bool {
	return a == ActionNew || a == ActionUpdated
}

// MarshalText implements encoding.TextMarshaler
func (a FileAction) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid file action %d", uint8(a))
	}
	return []byte(actionNames[a]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *FileAction) UnmarshalText(text []byte) error {
	for i, name := range actionNames {
		if name == string(text) {
			*a = FileAction(i)
			return nil
		}
	}
	return fmt.Errorf("unknown file action %q", string(text))
}

// FileEntry is one classified file produced by a scan.
// Entries are read-only once the scan returns them.
type FileEntry struct {
	// SourcePath is the absolute location of the source file
	SourcePath string `json:"source_path"`

	// TargetPath is the absolute location of the mirrored copy
	TargetPath string `json:"target_path"`

	// RelativePath is relative to the target base and starts with the
	// source root's own directory name
	RelativePath string `json:"relative_path"`

	Action FileAction `json:"action"`

	// SourceSize and SourceModTime are zero for entries describing a
	// missing source root
	SourceSize    int64     `json:"source_size"`
	SourceModTime time.Time `json:"source_mod_time"`

	// Reason is only set for ActionError
	Reason string `json:"reason,omitempty"`
}

// CountByAction tallies entries per action
func CountByAction(entries []FileEntry) map[FileAction]int {
	counts := make(map[FileAction]int, len(actionNames))
	for i := range entries {
		counts[entries[i].Action]++
	}
	return counts
}

// Actionable returns the NEW and UPDATED entries in their original order,
// together with the sum of their source sizes
func Actionable(entries []FileEntry) ([]FileEntry, int64) {
	var out []FileEntry
	var total int64
	for i := range entries {
		if entries[i].Action.IsActionable() {
			out = append(out, entries[i])
			total += entries[i].SourceSize
		}
	}
	return out, total
}
