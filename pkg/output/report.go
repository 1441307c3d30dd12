// Package output renders the final scan report.
package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/portsweep/portsweep/pkg/target"
)

// Reporter writes per-host report blocks as plain text. Unlike the
// progress lines emitted during scanning, the report is deterministic:
// targets appear in resolution order and ports in request order.
type Reporter struct {
	writer *bufio.Writer
}

// NewReporter creates a reporter writing to w
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{writer: bufio.NewWriter(w)}
}

// Write renders one block per target, separated by blank lines, and
// flushes.
func (r *Reporter) Write(targets []*target.Target) error {
	for i, tgt := range targets {
		if i > 0 {
			if err := r.writer.WriteByte('\n'); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(r.writer, tgt.Report()); err != nil {
			return err
		}
	}
	return r.writer.Flush()
}
