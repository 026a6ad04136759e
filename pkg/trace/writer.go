package trace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/envforge/envforge/pkg/environment"
	"github.com/envforge/envforge/pkg/telemetry"
)

const (
	sectionRule    = "═══════════════════════════════════════════════════════════════"
	subsectionRule = "───────────────────────────────────────────────────────────────"

	// timestampLayout orders trace files chronologically by name.
	timestampLayout = "20060102-150405"
)

// Writer writes failure trace files into one traces directory.
type Writer struct {
	tracesDir string
}

// NewWriter creates a writer for the given traces directory. The
// directory is created on first write.
func NewWriter(tracesDir string) *Writer {
	return &Writer{tracesDir: tracesDir}
}

// TracesDir returns the traces directory path.
func (w *Writer) TracesDir() string {
	return w.tracesDir
}

// WriteTrace writes one failure trace file for a command and returns
// its path. The error chain is extracted from err by unwrapping.
// Existing trace files are never overwritten; a numeric suffix is
// appended when two failures share a timestamp.
func WriteTrace[S environment.Step](w *Writer, command string, fc environment.FailureContext[S], err error) (string, error) {
	if mkErr := os.MkdirAll(w.tracesDir, 0755); mkErr != nil {
		return "", fmt.Errorf("failed to create traces directory %s: %w", w.tracesDir, mkErr)
	}

	content := formatTrace(command, fc, err)
	path, wErr := w.createTraceFile(command, content)
	if wErr != nil {
		return "", wErr
	}

	if tel := telemetry.Default(); tel != nil {
		tel.Metrics.RecordTraceWritten()
	}
	return path, nil
}

// createTraceFile writes content under a timestamp-based name, probing
// suffixed names on collision.
func (w *Writer) createTraceFile(command, content string) (string, error) {
	timestamp := time.Now().UTC().Format(timestampLayout)
	base := fmt.Sprintf("%s-%s", timestamp, command)

	for attempt := 0; ; attempt++ {
		name := base + ".log"
		if attempt > 0 {
			name = fmt.Sprintf("%s-%d.log", base, attempt+1)
		}
		path := filepath.Join(w.tracesDir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", fmt.Errorf("failed to create trace file %s: %w", path, err)
		}
		_, werr := f.WriteString(content)
		cerr := f.Close()
		if werr != nil {
			return "", fmt.Errorf("failed to write trace file %s: %w", path, werr)
		}
		if cerr != nil {
			return "", fmt.Errorf("failed to close trace file %s: %w", path, cerr)
		}
		return path, nil
	}
}

// formatTrace assembles the full trace document.
func formatTrace[S environment.Step](command string, fc environment.FailureContext[S], err error) string {
	var b strings.Builder

	title := strings.ToUpper(command) + " FAILURE TRACE"
	b.WriteString(header(title))

	fmt.Fprintf(&b, "Trace ID: %s\n", fc.TraceID)
	fmt.Fprintf(&b, "Failed At: %s\n", fc.FailedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Execution Started: %s\n", fc.ExecutionStartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Execution Duration: %s\n", fc.ExecutionDuration)
	fmt.Fprintf(&b, "Error Summary: %s\n", fc.ErrorSummary)
	fmt.Fprintf(&b, "Failed Step: %s\n", string(fc.FailedStep))
	fmt.Fprintf(&b, "Error Kind: %s\n\n", fc.ErrorKind)

	b.WriteString(errorChainHeader())
	b.WriteString(formatErrorChain(err))

	b.WriteString(footer())
	return b.String()
}

// header formats the top banner with a centered title.
func header(title string) string {
	return fmt.Sprintf("%s\n%s\n%s\n\n", sectionRule, center(title, 63), sectionRule)
}

// footer formats the closing banner.
func footer() string {
	return fmt.Sprintf("\n%s\n%s\n%s\n", sectionRule, center("END OF TRACE", 63), sectionRule)
}

// errorChainHeader formats the error chain section divider.
func errorChainHeader() string {
	return fmt.Sprintf("%s\n%s\n%s\n\n", subsectionRule, center("ERROR CHAIN", 63), subsectionRule)
}

// formatErrorChain renders one line per level of the error chain,
// walking err with errors.Unwrap.
func formatErrorChain(err error) string {
	var b strings.Builder
	level := 0
	for err != nil {
		fmt.Fprintf(&b, "[Level %d] %s\n", level, err.Error())
		err = errors.Unwrap(err)
		level++
	}
	return b.String()
}

// center pads s with spaces to center it in a field of the given width.
func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s
}
