package compare

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sdejongh/mirrorsync/pkg/models"
	"github.com/sdejongh/mirrorsync/pkg/storage"
)

// Comparator decides how a source file relates to its mirrored target
type Comparator interface {
	// Compare classifies sourcePath against targetPath. sourceInfo is the
	// metadata already read by the scanner. A missing target yields
	// ActionNew; errors are returned only for read or stat failures.
	Compare(ctx context.Context, sourcePath, targetPath string, sourceInfo os.FileInfo) (models.FileAction, error)

	// Name returns the name of the comparison method
	Name() string
}

// New returns the comparator for method. bufferSize is the block size used
// by the digest comparators.
func New(method models.CompareMethod, backend storage.Backend, bufferSize int) (Comparator, error) {
	switch method {
	case models.CompareTimestampSize, "":
		return NewTimestampSizeComparator(backend), nil
	case models.CompareHash:
		return NewHashComparator(backend, bufferSize), nil
	case models.CompareXXHash:
		return NewXXHashComparator(backend, bufferSize), nil
	default:
		return nil, fmt.Errorf("unsupported compare method: %s", method)
	}
}

// statTarget returns nil info without error when the target is absent
func statTarget(backend storage.Backend, targetPath string) (os.FileInfo, error) {
	info, err := backend.Stat(targetPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}
