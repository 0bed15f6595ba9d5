// Package sync implements the per-blob ensure-present state machine: for
// every blob referenced by a manifest, decide whether it is already present
// at the destination, can be
// cross-repo mounted from a source registry, must be uploaded from a local
// file, or must be downloaded from the source registry and cached before
// upload.
package sync

import "fmt"

// ActionsTaken is the five-bucket monoid summarizing what the ensure-present
// state machine did across a run. Records are merged at the barrier where
// per-destination worker results are collected.
type ActionsTaken struct {
	AlreadyPresent     int
	AlreadyPresentSize int64

	CopiedFromSourceRepository     int
	CopiedFromSourceRepositorySize int64

	UploadedFromLocal     int
	UploadedFromLocalSize int64

	DownloadedFromSourceRepository     int
	DownloadedFromSourceRepositorySize int64

	UploadedDataFromSourceRepository     int
	UploadedDataFromSourceRepositorySize int64
}

// Merge adds other's counts into a.
func (a *ActionsTaken) Merge(other ActionsTaken) {
	a.AlreadyPresent += other.AlreadyPresent
	a.AlreadyPresentSize += other.AlreadyPresentSize
	a.CopiedFromSourceRepository += other.CopiedFromSourceRepository
	a.CopiedFromSourceRepositorySize += other.CopiedFromSourceRepositorySize
	a.UploadedFromLocal += other.UploadedFromLocal
	a.UploadedFromLocalSize += other.UploadedFromLocalSize
	a.DownloadedFromSourceRepository += other.DownloadedFromSourceRepository
	a.DownloadedFromSourceRepositorySize += other.DownloadedFromSourceRepositorySize
	a.UploadedDataFromSourceRepository += other.UploadedDataFromSourceRepository
	a.UploadedDataFromSourceRepositorySize += other.UploadedDataFromSourceRepositorySize
}

func alreadyPresent(size int64) ActionsTaken {
	return ActionsTaken{AlreadyPresent: 1, AlreadyPresentSize: size}
}

func copiedFromSource(size int64) ActionsTaken {
	return ActionsTaken{CopiedFromSourceRepository: 1, CopiedFromSourceRepositorySize: size}
}

func uploadedFromLocal(size int64) ActionsTaken {
	return ActionsTaken{UploadedFromLocal: 1, UploadedFromLocalSize: size}
}

func uploadedFromSource(size int64, downloaded bool) ActionsTaken {
	a := ActionsTaken{UploadedDataFromSourceRepository: 1, UploadedDataFromSourceRepositorySize: size}
	if downloaded {
		a.DownloadedFromSourceRepository = 1
		a.DownloadedFromSourceRepositorySize = size
	}
	return a
}

func (a ActionsTaken) String() string {
	return fmt.Sprintf(
		"already present: %d (%s); copied from source: %d (%s); uploaded from local: %d (%s); downloaded from source: %d (%s); uploaded from source data: %d (%s)",
		a.AlreadyPresent, sizeToString(a.AlreadyPresentSize),
		a.CopiedFromSourceRepository, sizeToString(a.CopiedFromSourceRepositorySize),
		a.UploadedFromLocal, sizeToString(a.UploadedFromLocalSize),
		a.DownloadedFromSourceRepository, sizeToString(a.DownloadedFromSourceRepositorySize),
		a.UploadedDataFromSourceRepository, sizeToString(a.UploadedDataFromSourceRepositorySize),
	)
}

const (
	bytesInMB = 1024 * 1024
	bytesInGB = bytesInMB * 1024
)

func sizeToString(size int64) string {
	switch {
	case size >= bytesInGB:
		return fmt.Sprintf("%.2f GB", float64(size)/float64(bytesInGB))
	case size >= bytesInMB:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(bytesInMB))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
