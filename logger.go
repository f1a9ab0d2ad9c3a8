package recipeassistant

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CoordinationLogger is the interface for router iteration logging.
type CoordinationLogger interface {
	LogIteration(iteration IterationLog) error
}

// NewCoordinationLogFilePath returns a file path under dir based on a cleaned up model id, which makes logs produced with various models easier to tell apart.
func NewCoordinationLogFilePath(dir, model string) string {
	name := strings.NewReplacer(":", "_", "/", "_").Replace(strings.ToLower(model))
	return filepath.Join(dir, fmt.Sprintf("%d.%s.json", time.Now().Unix(), name))
}

// IterationLog represents a single oracle round trip of one routed turn
type IterationLog struct {
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	Decision  any       `json:"decision,omitempty"`
	Step      *StepLog  `json:"step,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// StepLog represents one tool invocation recorded in the scratchpad
type StepLog struct {
	Tool     string        `json:"tool"`
	Input    string        `json:"input"`
	Output   string        `json:"output,omitempty"`
	Failed   bool          `json:"failed,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// FileCoordinationLogger accumulates iterations and writes them on Flush
type FileCoordinationLogger struct {
	iterations []IterationLog
	writer     io.Writer
}

// NewFileCoordinationLogger creates a new file-based coordination logger
func NewFileCoordinationLogger(writer io.Writer) *FileCoordinationLogger {
	return &FileCoordinationLogger{
		iterations: make([]IterationLog, 0),
		writer:     writer,
	}
}

// LogIteration buffers an iteration (does not flush immediately)
func (fcl *FileCoordinationLogger) LogIteration(iteration IterationLog) error {
	fcl.iterations = append(fcl.iterations, iteration)
	return nil
}

// Flush writes all accumulated iterations to the writer
func (fcl *FileCoordinationLogger) Flush() error {
	if fcl.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"coordination_session": map[string]any{
			"timestamp":  time.Now(),
			"iterations": fcl.iterations,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal coordination log: %w", err)
	}

	if _, err := fcl.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write coordination log: %w", err)
	}

	fcl.iterations = fcl.iterations[:0]
	return nil
}

// Iterations returns a copy of the buffered iterations.
func (fcl *FileCoordinationLogger) Iterations() []IterationLog {
	out := make([]IterationLog, len(fcl.iterations))
	copy(out, fcl.iterations)
	return out
}

// NoOpCoordinationLogger discards all log entries
type NoOpCoordinationLogger struct{}

func NewNoOpCoordinationLogger() *NoOpCoordinationLogger {
	return &NoOpCoordinationLogger{}
}

func (nop *NoOpCoordinationLogger) LogIteration(iteration IterationLog) error {
	return nil
}

// StdoutCoordinationLogger logs each iteration as a JSON line (for Lambda/CloudWatch)
type StdoutCoordinationLogger struct {
	out io.Writer
}

func NewStdoutCoordinationLogger() *StdoutCoordinationLogger {
	return &StdoutCoordinationLogger{out: os.Stdout}
}

func (l *StdoutCoordinationLogger) LogIteration(iteration IterationLog) error {
	data, err := json.Marshal(iteration)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}
