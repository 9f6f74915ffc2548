// Package logging configures logrus for the voro binaries.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	FormatText       = "text"
	FormatPrettyJSON = "pretty-json"
)

// PrettyJSONFormatter prints one indented JSON object per entry.
//
// It is geared toward CLI/daemon logs read by humans and is not optimized
// for throughput.
type PrettyJSONFormatter struct {
	TimestampFormat string
}

func (f *PrettyJSONFormatter) Format(e *logrus.Entry) ([]byte, error) {
	payload := make(map[string]any, len(e.Data)+4)
	for k, v := range e.Data {
		payload[k] = fieldValue(v)
	}

	layout := f.TimestampFormat
	if layout == "" {
		layout = time.RFC3339Nano
	}
	when := e.Time
	if when.IsZero() {
		when = time.Now()
	}
	payload["time"] = when.Format(layout)
	payload["level"] = e.Level.String()
	payload["msg"] = e.Message
	if e.HasCaller() {
		payload["source"] = sourceFromFrame(e.Caller)
	}

	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		// As a last resort, avoid dropping logs.
		b = []byte("{\"time\":" + strconv.Quote(payload["time"].(string)) + ",\"level\":" + strconv.Quote(e.Level.String()) + ",\"msg\":" + strconv.Quote(e.Message) + "}")
	}
	return append(b, '\n'), nil
}

func fieldValue(v any) any {
	switch v := v.(type) {
	case error:
		return v.Error()
	case time.Duration:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	default:
		return v
	}
}

func sourceFromFrame(f *runtime.Frame) string {
	if f == nil || f.File == "" {
		return ""
	}
	// Keep it compact.
	file := f.File
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		file = file[idx+1:]
	}
	return file + ":" + strconv.Itoa(f.Line)
}

// Setup configures the standard logrus logger.
func Setup(out io.Writer, level, format string) error {
	return Configure(logrus.StandardLogger(), out, level, format)
}

// Configure applies level and format to l. An empty level means info.
func Configure(l *logrus.Logger, out io.Writer, level, format string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	switch format {
	case "", FormatText:
		l.SetFormatter(&logrus.TextFormatter{
			PadLevelText:  true,
			FullTimestamp: true,
		})
	case FormatPrettyJSON:
		l.SetFormatter(&PrettyJSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q (want %s or %s)", format, FormatText, FormatPrettyJSON)
	}

	if out != nil {
		l.SetOutput(out)
	}
	l.SetLevel(lvl)
	l.SetReportCaller(lvl >= logrus.TraceLevel)
	return nil
}
