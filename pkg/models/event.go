package models

// EventKind tags the payload carried by an Event
type EventKind uint8

const (
	// EventScanProgress carries Path: the file just visited by the scan
	EventScanProgress EventKind = iota + 1
	// EventScanFinished carries Entries, and Err when the scan was interrupted
	EventScanFinished
	// EventBackupProgress carries Index (1-based), Total and RelativePath
	EventBackupProgress
	// EventFileDone carries RelativePath, Status and Bytes
	EventFileDone
	// EventSpeedUpdate carries BytesPerSecond
	EventSpeedUpdate
	// EventBackupFinished carries Stats; always the last event of a run
	EventBackupFinished
)

func (k EventKind) String() string {
	switch k {
	case EventScanProgress:
		return "scan_progress"
	case EventScanFinished:
		return "scan_finished"
	case EventBackupProgress:
		return "backup_progress"
	case EventFileDone:
		return "file_done"
	case EventSpeedUpdate:
		return "speed_update"
	case EventBackupFinished:
		return "backup_finished"
	default:
		return "unknown"
	}
}

// Event is a message sent from a background scan or backup to its controller
type Event struct {
	Kind EventKind

	Path         string
	RelativePath string
	Index        int
	Total        int

	Status CopyStatus
	Bytes  int64
	// Detail explains a failed copy
	Detail string

	BytesPerSecond float64

	Entries []FileEntry
	Stats   *BackupStats
	Err     error
}
