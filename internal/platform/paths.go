package platform

import (
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizePath cleans a CLI path and makes it absolute
func NormalizePath(path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}

	normalized := filepath.Clean(path)

	// filepath.Clean collapses the leading double separator of UNC paths
	if IsUNCPath(path) && !strings.HasPrefix(normalized, `\\`) {
		normalized = `\\` + strings.TrimLeft(normalized, `\`)
	}
	if IsUNCPath(normalized) {
		return normalized, nil
	}

	abs, err := filepath.Abs(normalized)
	if err != nil {
		return "", &PathError{Path: path, Message: err.Error()}
	}
	return abs, nil
}

// IsUNCPath checks if a path is a UNC path (Windows network share)
func IsUNCPath(path string) bool {
	if runtime.GOOS != "windows" {
		return false
	}
	return strings.HasPrefix(path, `\\`) || strings.HasPrefix(path, "//")
}

// ValidatePath checks if a path is usable on the current platform
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return &PathError{Path: path, Message: "path is empty"}
	}
	if strings.ContainsRune(path, 0) {
		return &PathError{Path: path, Message: "path contains a NUL byte"}
	}

	if runtime.GOOS == "windows" && !IsUNCPath(path) {
		// Skip the drive letter colon
		rest := path
		if len(rest) >= 2 && rest[1] == ':' {
			rest = rest[2:]
		}
		for _, char := range []string{"<", ">", ":", "\"", "|", "?", "*"} {
			if strings.Contains(rest, char) {
				return &PathError{Path: path, Message: "path contains invalid character: " + char}
			}
		}
	}

	return nil
}

// PathError represents a path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}
