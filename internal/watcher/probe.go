package watcher

import (
	"os"

	"github.com/gofrs/flock"
)

// probeFunc checks whether a file has stopped changing. It returns the
// current size, whether the file is stable, and a probe error. A file is
// stable once its size matches the previous observation and an exclusive
// lock can be taken and released, meaning no cooperative writer holds it.
type probeFunc func(path string, lastSize int64) (size int64, stable bool, err error)

func probeOnce(path string, lastSize int64) (int64, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return lastSize, false, err
	}
	size := info.Size()
	if lastSize < 0 || size != lastSize {
		return size, false, nil
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return size, false, err
	}
	if !locked {
		return size, false, nil
	}
	if err := lock.Unlock(); err != nil {
		return size, false, err
	}
	return size, true, nil
}
