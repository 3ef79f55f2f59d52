package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomWriterStripsDatePrefix(t *testing.T) {
	var buf bytes.Buffer

	w := customWriter{logr: zerolog.New(&buf)}

	n, err := w.Write([]byte("2024/04/19 17:15:21 ldap: connection closed\n"))
	require.NoError(t, err)
	assert.Equal(t, 44, n)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ldap: connection closed", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestCustomWriterKeepsPlainLines(t *testing.T) {
	var buf bytes.Buffer

	w := customWriter{logr: zerolog.New(&buf)}

	_, err := w.Write([]byte("  no prefix here \n"))
	require.NoError(t, err)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "no prefix here", line["message"])
}

func TestInitLoggingLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, InitLogging(true, false, true).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, InitLogging(false, false, false).GetLevel())
}
