package hooks

import (
	"path"
	"runtime"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// frames inside logrus are skipped when looking for the caller.
var skipPrefixes = []string{
	"github.com/sirupsen/logrus",
}

type contextHook struct {
}

// NewContextHook returns a hook that tags every entry with the file:line of
// the code that logged it.
func NewContextHook() contextHook {
	return contextHook{}
}

func (hook contextHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook contextHook) Fire(entry *log.Entry) error {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !skipFrame(frame.Function) {
			entry.Data["file:line"] = trimFile(frame.File) + ":" + strconv.Itoa(frame.Line)
			break
		}
		if !more {
			break
		}
	}
	return nil
}

func skipFrame(fn string) bool {
	for _, p := range skipPrefixes {
		if strings.HasPrefix(fn, p) {
			return true
		}
	}
	return false
}

// trimFile keeps the package directory and file name.
func trimFile(file string) string {
	return path.Join(path.Base(path.Dir(file)), path.Base(file))
}
