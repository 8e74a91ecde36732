package events

import (
	"context"
	"encoding/json"

	"github.com/helioworks/support-ai-platform/pkg/logging"
)

// LogSink emits each event as one structured JSON log line. Designed for
// fast grep/filter debugging:
//
//	grep '"type":"session.escalated"' /var/log/app.log
//	grep '"session_id":"..."' /var/log/app.log
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a logging event sink.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, evt Event) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	s.logger.Info(string(b))
	return nil
}
