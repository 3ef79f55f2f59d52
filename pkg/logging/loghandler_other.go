//go:build !windows
// +build !windows

package logging

import (
	"io"
	"log/syslog"

	"github.com/rs/zerolog"
)

func syslogWriter() (io.Writer, bool) {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, "ldapsafe")
	if err != nil {
		return nil, false
	}

	return zerolog.SyslogLevelWriter(w), true
}
