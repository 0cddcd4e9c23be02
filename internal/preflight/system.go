package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
)

// MinDiskSpaceBytes is the free space required where the index lives.
const MinDiskSpaceBytes = 100 * 1024 * 1024

// MinFileDescriptors is the descriptor limit below which watch mode may run
// out of watches.
const MinFileDescriptors = 1024

// CheckDiskSpace checks free space on the filesystem holding dir, or its
// nearest existing ancestor.
func (c *Checker) CheckDiskSpace(dir string) CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(existingAncestor(dir), &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	available := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free (minimum: %s)", humanize.IBytes(available), humanize.IBytes(c.minDiskSpace))
	if available < c.minDiskSpace {
		result.Status = StatusFail
		return result
	}
	result.Status = StatusPass
	return result
}

// CheckWritePermissions checks that a file can be created in dir, or in its
// nearest existing ancestor when dir is not created yet.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{Name: "write_permissions", Required: true}

	target := existingAncestor(dir)
	f, err := os.CreateTemp(target, ".semidx-doctor-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot write to %s: %v", target, err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = "OK"
	result.Details = target
	return result
}

// CheckFileDescriptors checks the open file limit. Only watch mode needs a
// high limit, so a low one is a warning.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors"}

	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", limit.Cur, c.minFileDescriptor)
	if limit.Cur < c.minFileDescriptor {
		result.Status = StatusWarn
		result.Details = "Run 'ulimit -n 10240' before 'semidx watch' on large trees"
		return result
	}
	result.Status = StatusPass
	return result
}

func existingAncestor(dir string) string {
	dir = filepath.Clean(dir)
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func parentDir(path string) string {
	return filepath.Dir(filepath.Clean(path))
}
