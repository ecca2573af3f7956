package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// progressPrinter renders download progress. On a terminal it redraws one
// line; elsewhere it prints a line per quarter.
type progressPrinter struct {
	w       io.Writer
	label   string
	tty     bool
	last    int
	printed bool
}

func newProgressPrinter(w io.Writer, label string) *progressPrinter {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &progressPrinter{w: w, label: label, tty: tty, last: -1}
}

func (p *progressPrinter) Update(fraction float64) {
	if p == nil {
		return
	}
	pct := int(fraction * 100)
	if p.tty {
		if pct == p.last {
			return
		}
		fmt.Fprintf(p.w, "\r%s %3d%%", p.label, pct)
	} else {
		bucket := pct / 25 * 25
		if bucket <= p.last {
			return
		}
		pct = bucket
		fmt.Fprintf(p.w, "%s %d%%\n", p.label, bucket)
	}
	p.last = pct
	p.printed = true
}

// Done clears the redrawn line on a terminal.
func (p *progressPrinter) Done() {
	if p == nil || !p.tty || !p.printed {
		return
	}
	fmt.Fprint(p.w, "\r\033[K")
}
