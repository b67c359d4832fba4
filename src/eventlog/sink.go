// Package eventlog wires the node's one logrus.Logger to two destinations,
// the way src/config/config.go attaches a single logger everywhere:
// human-readable lines on stdout via logrus-prefixed-formatter, and a
// structured JSONL record per lifecycle event through an lfshook-attached
// file hook. Every mandatory event name from the wire spec is a single
// Record(event, fields) call; this package only owns the formatting and
// routing, not the call sites.
package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Recorder is the narrow interface every engine depends on, so tests can
// inject a fake recorder instead of opening a real JSONL file.
type Recorder interface {
	Record(event string, fields logrus.Fields)
}

// Sink owns the logger and the JSONL file it writes to.
type Sink struct {
	Logger *logrus.Entry
	file   *os.File
}

// New creates the dual-destination logger for a node identified by nodeID,
// listening on port, writing JSONL records under logDir. The file name
// follows the wire spec: node-<port>-<ts>-<nodeid>.jsonl.
func New(logDir string, port int, nodeID string, level logrus.Level) (*Sink, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("eventlog: create log dir: %w", err)
	}

	fileName := fmt.Sprintf("node-%d-%d-%s.jsonl", port, time.Now().UnixMilli(), nodeID)
	path := filepath.Join(logDir, fileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open jsonl sink: %w", err)
	}

	logger := logrus.New()
	logger.Level = level
	logger.Out = os.Stdout
	logger.Formatter = new(prefixed.TextFormatter)

	jsonFormatter := &logrus.JSONFormatter{
		DisableTimestamp: true,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "event",
		},
	}
	logger.Hooks.Add(lfshook.NewHook(f, jsonFormatter))

	entry := logger.WithField("node_id", nodeID)

	return &Sink{Logger: entry, file: f}, nil
}

// Record logs one lifecycle event with the mandatory ts_ms/event/node_id
// triple plus arbitrary event-specific fields.
func (s *Sink) Record(event string, fields logrus.Fields) {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["ts_ms"] = time.Now().UnixMilli()
	s.Logger.WithFields(fields).Info(event)
}

// Close flushes and closes the underlying JSONL file.
func (s *Sink) Close() error {
	return s.file.Close()
}
