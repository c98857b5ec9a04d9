package compare

import (
	"context"
	"os"
	"time"

	"github.com/sdejongh/mirrorsync/pkg/models"
	"github.com/sdejongh/mirrorsync/pkg/storage"
)

// ModTimeTolerance absorbs the 2-second timestamp granularity of FAT
// filesystems. A source newer than its target by this much or less counts as
// unchanged.
const ModTimeTolerance = time.Second

// TimestampSizeComparator compares files by size and modification time
type TimestampSizeComparator struct {
	backend storage.Backend
}

// NewTimestampSizeComparator creates a new timestamp/size comparator
func NewTimestampSizeComparator(backend storage.Backend) *TimestampSizeComparator {
	return &TimestampSizeComparator{backend: backend}
}

// Compare returns ActionUpdated when sizes differ or when the source is
// newer than the target by more than ModTimeTolerance. A source that is
// older than its target is not an update.
func (c *TimestampSizeComparator) Compare(ctx context.Context, sourcePath, targetPath string, sourceInfo os.FileInfo) (models.FileAction, error) {
	targetInfo, err := statTarget(c.backend, targetPath)
	if err != nil {
		return models.ActionError, err
	}
	if targetInfo == nil {
		return models.ActionNew, nil
	}

	if sourceInfo.Size() != targetInfo.Size() {
		return models.ActionUpdated, nil
	}
	if sourceInfo.ModTime().Sub(targetInfo.ModTime()) > ModTimeTolerance {
		return models.ActionUpdated, nil
	}
	return models.ActionSkipped, nil
}

// Name returns the comparator name
func (c *TimestampSizeComparator) Name() string {
	return string(models.CompareTimestampSize)
}
