package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Progress reports completed items against a known total.
type Progress struct {
	bar *progressbar.ProgressBar
}

// NewProgress returns a progress bar writing to stderr. A negative total
// renders a spinner, used when the amount of work is not known up front.
func NewProgress(total int, description string) *Progress {
	return newProgress(os.Stderr, total, description)
}

func newProgress(w io.Writer, total int, description string) *Progress {
	return &Progress{bar: progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)}
}

// Set moves the bar to n completed items.
func (p *Progress) Set(n int) {
	_ = p.bar.Set(n)
}

// Add advances the bar by one item.
func (p *Progress) Add() {
	_ = p.bar.Add(1)
}

// Finish completes the bar.
func (p *Progress) Finish() {
	_ = p.bar.Finish()
}
