// Package logging builds the agent's loggers: stderr during interactive
// use, a size-rotated file when running as a daemon.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures logger construction.
type Options struct {
	// File is the log path ("" = stderr only).
	File string
	// MaxSizeMB rotates the log after this size.
	MaxSizeMB int
	// MaxBackups keeps this many rotated files.
	MaxBackups int
	// Quiet drops stderr output, leaving only the file (no-op without
	// a file).
	Quiet bool
}

// New builds a logger per the options. With both a file and stderr, lines
// go to both.
func New(opts Options) *log.Logger {
	var writers []io.Writer
	if !opts.Quiet || opts.File == "" {
		writers = append(writers, os.Stderr)
	}
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		})
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}
	return log.New(out, "", log.LstdFlags)
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}
