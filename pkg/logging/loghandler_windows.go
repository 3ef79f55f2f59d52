//go:build windows
// +build windows

package logging

import "io"

// syslog is not available on windows; logs stay on stderr
func syslogWriter() (io.Writer, bool) {
	return nil, false
}
