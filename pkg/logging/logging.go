package logging

import (
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	ldapliblogmatcher = regexp.MustCompile(`^\d{4}\/\d{1,2}\/\d{1,2} \d{1,2}\:\d{1,2}\:\d{1,2} `)
)

// InitLogging builds the process logger and routes the standard library
// logger, used by the LDAP libraries, through it.
func InitLogging(reqdebug bool, reqsyslog bool, reqstructlog bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if reqdebug {
		level = zerolog.DebugLevel
	}

	var out io.Writer

	if reqstructlog {
		zerolog.TimeFieldFormat = time.RFC1123Z
		out = os.Stderr
	} else {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC1123Z}
	}

	if reqsyslog {
		if w, ok := syslogWriter(); ok {
			out = w
		}
	}

	logr := zerolog.New(out).Level(level).With().Timestamp().Logger()

	log.SetFlags(log.LstdFlags)
	log.SetOutput(customWriter{logr: logr})

	return logr
}

type customWriter struct {
	logr zerolog.Logger
}

func (e customWriter) Write(p []byte) (int, error) {
	submatchall := ldapliblogmatcher.FindAllString(string(p), 1)
	var msg string
	for _, element := range submatchall {
		msg = strings.TrimSpace(string(p[len(element):]))
	}
	if msg == "" {
		msg = strings.TrimSpace(string(p))
	}
	e.logr.Info().Msg(msg)
	return len(p), nil
}
