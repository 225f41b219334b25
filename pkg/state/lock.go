package state

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/meshwire/wgmesh/pkg/meshapi"
)

const (
	lockStaleAge   = 5 * time.Second
	lockRetryDelay = 100 * time.Millisecond
	lockMaxRetries = 20
)

// fileLock is an exclusive, process-crash-tolerant lock file at the path in
// WG_LOCK_FILE, or at the sibling "<path>.lock" when that is unset: acquire
// creates it exclusively with "<pid>:<unix-ms>", and a contending acquirer
// that finds a stale, dead-PID lock reclaims it.
type fileLock struct {
	path string
}

func newFileLock(statePath string) *fileLock {
	if p := os.Getenv("WG_LOCK_FILE"); p != "" {
		return &fileLock{path: p}
	}
	return &fileLock{path: statePath + ".lock"}
}

// acquire blocks until the lock is held or lockMaxRetries is exhausted, in
// which case it returns a meshapi.KindLockTimeout error.
func (l *fileLock) acquire() error {
	for attempt := 0; attempt < lockMaxRetries; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d:%d", os.Getpid(), time.Now().UnixMilli())
			cerr := f.Close()
			if werr != nil || cerr != nil {
				return meshapi.Wrap(meshapi.KindLockTimeout, "write lock file", firstNonNil(werr, cerr))
			}
			return nil
		}
		if !os.IsExist(err) {
			return meshapi.Wrap(meshapi.KindLockTimeout, "create lock file", err)
		}

		if l.reclaimIfStale() {
			continue
		}
		time.Sleep(lockRetryDelay)
	}
	return meshapi.New(meshapi.KindLockTimeout, "timed out acquiring state lock after 20 retries")
}

// reclaimIfStale unlinks the lock file and reports true if it was written
// more than lockStaleAge ago by a PID that is no longer alive.
func (l *fileLock) reclaimIfStale() bool {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return false
	}
	pid, writtenAt, ok := parseLockContent(string(data))
	if !ok {
		return false
	}
	if time.Since(writtenAt) <= lockStaleAge {
		return false
	}
	if processAlive(pid) {
		return false
	}
	_ = os.Remove(l.path)
	return true
}

func (l *fileLock) release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return meshapi.Wrap(meshapi.KindInternal, "release state lock", err)
	}
	return nil
}

func parseLockContent(s string) (pid int, writtenAt time.Time, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, false
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, time.Time{}, false
	}
	ms, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	return pid, time.UnixMilli(ms), true
}

// processAlive probes liveness by sending signal 0, which the kernel
// delivers to no one but still validates that the PID exists and is
// reachable by this user.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if errors.Is(err, os.ErrProcessDone) {
		return false
	}
	return err != syscall.ESRCH && !os.IsNotExist(err)
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
