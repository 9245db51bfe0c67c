//go:build !unix

package storage

// lockFile is a no-op where flock is unavailable; the revision check in
// Save still catches most overlapping writers.
func lockFile(path string) (func(), error) {
	return func() {}, nil
}
