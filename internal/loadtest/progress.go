package loadtest

import (
	"fmt"
	"io"
	"sync"
)

// ProgressPrinter rewrites a single "i of n sent!" line in place.
type ProgressPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewProgressPrinter returns a printer writing to w.
func NewProgressPrinter(w io.Writer) *ProgressPrinter {
	return &ProgressPrinter{out: w}
}

// Update is a ProgressFunc.
func (p *ProgressPrinter) Update(completed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, "\r%d of %d sent!", completed, total)
}

// Done terminates the progress line.
func (p *ProgressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out)
}
