// Package vlog is a "toggled logger" that can be switched on or off at
// runtime and colorizes its output when attached to a terminal.
package vlog

import (
	"fmt"
	"log"
	"log/syslog"
	"os"

	"golang.org/x/term"
)

const (
	// ProgramName is used in log reports.
	ProgramName = "vaultfs"
	wpanicMsg   = "-wpanic turns this warning into a panic: "
)

// Escape sequences for terminal colors. Set in init() only if stdout is a
// terminal; otherwise left empty.
var (
	ColorReset  string
	ColorGrey   string
	ColorRed    string
	ColorGreen  string
	ColorYellow string
)

// toggledLogger is a Logger that can be enabled and disabled.
type toggledLogger struct {
	// Enabled toggles output on or off.
	Enabled bool
	// Wpanic panics after logging, useful in regression tests.
	Wpanic bool
	// prefix/postfix carry color escapes.
	prefix  string
	postfix string

	*log.Logger
}

func (l *toggledLogger) Printf(format string, v ...interface{}) {
	if !l.Enabled {
		return
	}
	l.Logger.Printf(l.prefix + fmt.Sprintf(format, v...) + l.postfix)
	if l.Wpanic {
		l.Logger.Panic(wpanicMsg + fmt.Sprintf(format, v...))
	}
}

func (l *toggledLogger) Println(v ...interface{}) {
	if !l.Enabled {
		return
	}
	l.Logger.Println(l.prefix + fmt.Sprint(v...) + l.postfix)
	if l.Wpanic {
		l.Logger.Panic(wpanicMsg + fmt.Sprint(v...))
	}
}

// Debug logs debug messages. Disabled by default.
var Debug *toggledLogger

// Info logs informational messages.
var Info *toggledLogger

// Warn logs warnings: nothing fatal by itself, but worth a human's attention.
var Warn *toggledLogger

// Fatal is for the message printed right before exiting.
var Fatal *toggledLogger

func init() {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		ColorReset = "\033[0m"
		ColorGrey = "\033[2m"
		ColorRed = "\033[31m"
		ColorGreen = "\033[32m"
		ColorYellow = "\033[33m"
	}

	Debug = &toggledLogger{
		Logger: log.New(os.Stdout, "", 0),
	}
	Info = &toggledLogger{
		Enabled: true,
		Logger:  log.New(os.Stdout, "", 0),
	}
	Warn = &toggledLogger{
		Enabled: true,
		Logger:  log.New(os.Stderr, "", 0),
		prefix:  ColorYellow,
		postfix: ColorReset,
	}
	Fatal = &toggledLogger{
		Enabled: true,
		Logger:  log.New(os.Stderr, "", 0),
		prefix:  ColorRed,
		postfix: ColorReset,
	}
}

// SwitchToSyslog redirects this logger's output to syslog.
func (l *toggledLogger) SwitchToSyslog(p syslog.Priority) {
	w, err := syslog.New(p, ProgramName)
	if err != nil {
		Warn.Printf("SwitchToSyslog: %v", err)
		return
	}
	l.SetOutput(w)
}
