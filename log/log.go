package log

import (
	"fmt"
	"io"
	_log "log"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

const (
	DEBUG = iota
	INFO
	IMPORTANT
	WARNING
	ERROR
	FATAL
	SUCCESS
)

var stdout io.Writer = color.Output
var g_rl io.Writer = nil
var debug_output = false
var mtx_log *sync.Mutex = &sync.Mutex{}

var null_log = _log.New(io.Discard, "", 0)

var (
	LogLabels = map[int]string{
		DEBUG:     "dbg",
		INFO:      "inf",
		IMPORTANT: "imp",
		WARNING:   "war",
		ERROR:     "err",
		FATAL:     "!!!",
		SUCCESS:   "+++",
	}
)

func DebugEnable(enable bool) {
	debug_output = enable
}

func SetOutput(o io.Writer) {
	stdout = o
}

func GetOutput() io.Writer {
	return stdout
}

func NullLogger() *_log.Logger {
	return null_log
}

func Debug(format string, args ...interface{}) {
	if debug_output {
		log(DEBUG, format, args...)
	}
}

func Info(format string, args ...interface{}) {
	log(INFO, format, args...)
}

func Important(format string, args ...interface{}) {
	log(IMPORTANT, format, args...)
}

func Warning(format string, args ...interface{}) {
	log(WARNING, format, args...)
}

func Error(format string, args ...interface{}) {
	log(ERROR, format, args...)
}

func Fatal(format string, args ...interface{}) {
	log(FATAL, format, args...)
	os.Exit(1)
}

func Success(format string, args ...interface{}) {
	log(SUCCESS, format, args...)
}

func log(lvl int, format string, args ...interface{}) {
	mtx_log.Lock()
	defer mtx_log.Unlock()

	fmt.Fprint(stdout, format_msg(lvl, format+"\n", args...))
}

func format_msg(lvl int, format string, args ...interface{}) string {
	t := time.Now()
	var sign, msg *color.Color
	switch lvl {
	case DEBUG:
		sign = color.New(color.FgBlack, color.BgHiBlack)
		msg = color.New(color.Reset, color.FgHiBlack)
	case INFO:
		sign = color.New(color.FgGreen, color.BgBlack)
		msg = color.New(color.Reset)
	case IMPORTANT:
		sign = color.New(color.FgWhite, color.BgHiBlue)
		msg = color.New(color.Reset)
	case WARNING:
		sign = color.New(color.FgBlack, color.BgYellow)
		msg = color.New(color.Reset)
	case ERROR:
		sign = color.New(color.FgWhite, color.BgRed)
		msg = color.New(color.Reset, color.FgRed)
	case FATAL:
		sign = color.New(color.FgBlack, color.BgRed)
		msg = color.New(color.Reset, color.FgRed, color.Bold)
	case SUCCESS:
		sign = color.New(color.FgWhite, color.BgGreen)
		msg = color.New(color.Reset, color.FgGreen)
	}
	time_clr := color.New(color.Reset)
	return "\r[" + time_clr.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second()) + "] [" + sign.Sprintf("%s", LogLabels[lvl]) + "] " + msg.Sprintf(format, args...)
}
