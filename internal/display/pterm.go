package display

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"

	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

// Pterm renders each stage as a pterm progress bar.
type Pterm struct {
	out io.Writer
}

// NewPterm writes bars to out (os.Stdout when nil).
func NewPterm(out io.Writer) *Pterm {
	if out == nil {
		out = os.Stdout
	}
	return &Pterm{out: out}
}

// Create starts a bar titled with the description.
func (p *Pterm) Create(total int, description string, opts reporter.DisplayOptions) (reporter.Handle, error) {
	bar := pterm.DefaultProgressbar.
		WithTitle(description).
		WithTotal(max(total, 1)).
		WithWriter(p.out).
		WithShowElapsedTime(false).
		WithRemoveWhenDone(false)
	if w, ok := opts[OptionWidth].(int); ok && w > 0 {
		bar = bar.WithMaxWidth(w)
	}
	pb, err := bar.Start()
	if err != nil {
		return nil, fmt.Errorf("start progress bar: %w", err)
	}
	return pb, nil
}

// Refresh moves the bar to completed and updates its title.
func (p *Pterm) Refresh(h reporter.Handle, completed, _ int, description string) error {
	pb, err := p.bar(h)
	if err != nil {
		return err
	}
	if !pb.IsActive {
		return nil
	}
	if pb.Title != description {
		pb.UpdateTitle(description)
	}
	if delta := completed - pb.Current; delta != 0 {
		pb.Add(delta)
	}
	return nil
}

// Close stops the bar. pterm tolerates stopping an inactive bar.
func (p *Pterm) Close(h reporter.Handle) error {
	pb, err := p.bar(h)
	if err != nil {
		return err
	}
	if _, err := pb.Stop(); err != nil {
		return fmt.Errorf("stop progress bar: %w", err)
	}
	return nil
}

func (p *Pterm) bar(h reporter.Handle) (*pterm.ProgressbarPrinter, error) {
	pb, ok := h.(*pterm.ProgressbarPrinter)
	if !ok || pb == nil {
		return nil, fmt.Errorf("pterm display: foreign handle %T", h)
	}
	return pb, nil
}
