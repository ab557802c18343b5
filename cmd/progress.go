package cmd

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// barProgressReporter renders scan progress on a terminal bar.
type barProgressReporter struct {
	w           io.Writer
	description string
	bar         *progressbar.ProgressBar
}

func newBarProgressReporter(w io.Writer, description string) *barProgressReporter {
	return &barProgressReporter{w: w, description: description}
}

// SetTotal recreates the bar for total items.
func (p *barProgressReporter) SetTotal(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(p.description),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100e6),
		progressbar.OptionClearOnFinish(),
	)
}

// Increment advances the bar by one.
func (p *barProgressReporter) Increment() {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}
