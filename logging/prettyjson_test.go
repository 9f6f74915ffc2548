package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	require.NoError(t, Configure(l, &buf, "debug", FormatPrettyJSON))

	l.WithFields(logrus.Fields{
		"game":  int64(3),
		"wait":  2 * time.Second,
		"cause": errors.New("boom"),
	}).Debug("placement rejected")

	out := buf.String()
	assert.Contains(t, out, "\n  \"msg\"", "output should be indented")

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "placement rejected", payload["msg"])
	assert.Equal(t, "debug", payload["level"])
	assert.Equal(t, float64(3), payload["game"])
	assert.Equal(t, "2s", payload["wait"])
	assert.Equal(t, "boom", payload["cause"])
	assert.NotEmpty(t, payload["time"])
	assert.NotContains(t, payload, "source")
}

func TestConfigure_TraceReportsCaller(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	require.NoError(t, Configure(l, &buf, "trace", FormatPrettyJSON))
	l.Trace("deep")

	var payload map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	assert.True(t, strings.HasPrefix(payload["source"].(string), "prettyjson_test.go:"))
}

func TestConfigure_Text(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	require.NoError(t, Configure(l, &buf, "", FormatText))
	l.Debug("hidden")
	l.WithField("board", 1).Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "board=1")
}

func TestConfigure_Errors(t *testing.T) {
	l := logrus.New()
	assert.Error(t, Configure(l, nil, "loud", FormatText))
	assert.Error(t, Configure(l, nil, "info", "xml"))
}
