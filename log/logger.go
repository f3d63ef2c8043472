// Package log filters and timestamps log lines by their [level] tag.
package log

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"time"
)

// Logger is the logging interface handed to all components. Messages are
// prefixed with a [level] tag, e.g. Printf("[warn] skipping %d", idx).
type Logger interface {
	Println(v ...interface{})
	Printf(format string, v ...interface{})
}

type Level string

const (
	LDebug    = Level("debug")
	LProgress = Level("progress")
	LStep     = Level("step")
	LInfo     = Level("info")
	LWarn     = Level("warn")
	LError    = Level("error")
	LFatal    = Level("fatal")
)

// ordered from verbose to severe
var levels = []Level{LDebug, LProgress, LStep, LInfo, LWarn, LError, LFatal}

// ParseLevel returns the Level for name. Unknown names return false.
func ParseLevel(name string) (Level, bool) {
	for _, l := range levels {
		if string(l) == name {
			return l, true
		}
	}
	return "", false
}

func (l Level) rank() int {
	for i, lvl := range levels {
		if lvl == l {
			return i
		}
	}
	return -1
}

// New returns a Logger writing to w that drops all lines below minLevel.
// Lines without a known [level] tag are always written.
func New(w io.Writer, minLevel Level) *log.Logger {
	return log.New(&filter{start: time.Now(), w: w, min: minLevel.rank()}, "", 0)
}

// Discard drops everything.
var Discard Logger = log.New(ioutil.Discard, "", 0)

type filter struct {
	start time.Time
	w     io.Writer
	min   int
}

func lineLevel(line []byte) Level {
	x := bytes.IndexByte(line, '[')
	if x < 0 {
		return ""
	}
	y := bytes.IndexByte(line[x:], ']')
	if y < 0 {
		return ""
	}
	return Level(line[x+1 : x+y])
}

// Write gets a single line from log.Logger and prefixes it with the wall
// clock and the time since the logger was created.
func (f *filter) Write(p []byte) (int, error) {
	if r := lineLevel(p).rank(); r >= 0 && r < f.min {
		return len(p), nil
	}
	now := time.Now()
	d := now.Sub(f.start).Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60

	b := bytes.Buffer{}
	fmt.Fprintf(&b, "[%s] %d:%02d:%02d ", now.Format(time.RFC3339), h, m, s)
	b.Write(p)
	if _, err := f.w.Write(b.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Step logs the start of name and returns a func that logs its duration.
func Step(l Logger, name string) func() {
	start := time.Now()
	l.Println("[step] Starting:", name)
	return func() {
		l.Printf("[step] Finished: %s in %s", name, time.Since(start))
	}
}
