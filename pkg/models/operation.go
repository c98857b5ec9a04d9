package models

import (
	"fmt"
)

// CompareMethod defines how a source file is compared with its mirror
type CompareMethod string

const (
	// CompareTimestampSize compares size and modification time (fast, default)
	CompareTimestampSize CompareMethod = "timestamp_size"
	// CompareHash compares SHA-256 digests of the whole content
	CompareHash CompareMethod = "hash"
	// CompareXXHash compares xxhash64 digests of the whole content
	CompareXXHash CompareMethod = "xxhash"
)

// CompareMethods lists every supported method, default first
var CompareMethods = []CompareMethod{CompareTimestampSize, CompareHash, CompareXXHash}

// ParseCompareMethod converts a configuration value into a CompareMethod.
// An empty string selects the default.
func ParseCompareMethod(s string) (CompareMethod, error) {
	if s == "" {
		return CompareTimestampSize, nil
	}
	for _, m := range CompareMethods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", &ValidationError{
		Field:   "compare_method",
		Message: fmt.Sprintf("unknown method %q (valid: timestamp_size, hash, xxhash)", s),
	}
}

// CopyStatus is the outcome of copying one actionable file
type CopyStatus uint8

const (
	// StatusOK means the file was copied
	StatusOK CopyStatus = iota
	// StatusPermissionError means access was denied at the source or target
	StatusPermissionError
	// StatusError means any other filesystem failure
	StatusError
)

var copyStatusNames = [...]string{
	StatusOK:              "OK",
	StatusPermissionError: "PERMISSION_ERROR",
	StatusError:           "ERROR",
}

func (s CopyStatus) String() string {
	if int(s) >= len(copyStatusNames) {
		return fmt.Sprintf("CopyStatus(%d)", uint8(s))
	}
	return copyStatusNames[s]
}

// MarshalText implements encoding.TextMarshaler
func (s CopyStatus) MarshalText() ([]byte, error) {
	if int(s) >= len(copyStatusNames) {
		return nil, fmt.Errorf("invalid copy status %d", uint8(s))
	}
	return []byte(copyStatusNames[s]), nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
