
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger writes "[name] LEVEL: message" lines.
type Logger struct {
	name  string
	out   *log.Logger
	debug bool
}

func New(name string, debug bool) *Logger {
	return &Logger{
		name:  name,
		out:   log.New(os.Stdout, "", log.LstdFlags),
		debug: debug,
	}
}

// Nop discards everything. Used in tests.
func Nop() *Logger {
	return &Logger{name: "nop", out: log.New(io.Discard, "", 0)}
}

// Named returns a logger sharing the output and level with a different name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{name: name, out: l.out, debug: l.debug}
}

func (l *Logger) Debug(format string, args ...any) {
	if !l.debug {
		return
	}
	l.write("DEBUG", format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.write("INFO", format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.write("WARN", format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.write("ERROR", format, args...)
}

func (l *Logger) write(level, format string, args ...any) {
	l.out.Printf("[%s] %s: %s", l.name, level, fmt.Sprintf(format, args...))
}
