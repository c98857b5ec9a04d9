//go:build !unix

package platform

func diskUsage(path string) (Usage, error) {
	return Usage{}, ErrDiskUsageUnsupported
}

func existingParent(path string) string {
	return path
}
