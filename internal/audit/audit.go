package audit

import (
	"encoding/json"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Record is one classification exchange: the assembled prompt sent to the
// collaborator and the raw text that came back. Write-only trail; nothing
// in the application reads it back.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
}

// Logger appends JSON-lines records to a rotating file
type Logger struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewLogger creates a file-backed audit logger
func NewLogger(path string) *Logger {
	return &Logger{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // Megabytes
			MaxBackups: 10,
			MaxAge:     90, // Days
			Compress:   true,
		},
	}
}

// RecordClassification writes one exchange. Failures are swallowed; the
// audit trail never blocks a turn.
func (l *Logger) RecordClassification(sessionID, prompt, response string) {
	line, err := json.Marshal(Record{
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Prompt:    prompt,
		Response:  response,
	})
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Write(append(line, '\n'))
}

// Close flushes and closes the underlying file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
