package platform

import "errors"

// ErrDiskUsageUnsupported is returned on platforms without a statfs call
var ErrDiskUsageUnsupported = errors.New("disk usage not supported on this platform")

// Usage describes the filesystem holding a path
type Usage struct {
	Total uint64
	Free  uint64
	Used  uint64
}

// UsedPercent returns the used share of the filesystem in percent
func (u Usage) UsedPercent() float64 {
	if u.Total == 0 {
		return 0
	}
	return float64(u.Used) / float64(u.Total) * 100
}

// FreePercent returns the free share of the filesystem in percent
func (u Usage) FreePercent() float64 {
	if u.Total == 0 {
		return 0
	}
	return float64(u.Free) / float64(u.Total) * 100
}

// Fits reports whether size bytes fit into the free space
func (u Usage) Fits(size int64) bool {
	return size <= 0 || uint64(size) <= u.Free
}

// DiskUsage returns usage of the filesystem holding path. When path does not
// exist yet, its nearest existing parent is used.
func DiskUsage(path string) (Usage, error) {
	return diskUsage(existingParent(path))
}
