package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

const defaultWidth = 30

// Text draws a single-line bar per refresh, rewriting the line with a
// carriage return and ending it with a newline on Close.
type Text struct {
	mu    sync.Mutex
	out   io.Writer
	width int
}

type textBar struct {
	width  int
	closed bool
}

// NewText writes bars to out (os.Stderr when nil). width <= 0 selects 30
// columns.
func NewText(out io.Writer, width int) *Text {
	if out == nil {
		out = os.Stderr
	}
	if width <= 0 {
		width = defaultWidth
	}
	return &Text{out: out, width: width}
}

// Create allocates a bar; nothing is drawn until the first Refresh.
func (t *Text) Create(_ int, _ string, opts reporter.DisplayOptions) (reporter.Handle, error) {
	return &textBar{width: intOption(opts, OptionWidth, t.width)}, nil
}

// Refresh redraws the bar.
func (t *Text) Refresh(h reporter.Handle, completed, total int, description string) error {
	bar, err := t.bar(h)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if bar.closed {
		return nil
	}
	if _, err := io.WriteString(t.out, "\r"+renderLine(bar.width, completed, total, description)); err != nil {
		return fmt.Errorf("write progress line: %w", err)
	}
	return nil
}

// Close terminates the bar's line. Closing twice is a no-op.
func (t *Text) Close(h reporter.Handle) error {
	bar, err := t.bar(h)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if bar.closed {
		return nil
	}
	bar.closed = true
	if _, err := io.WriteString(t.out, "\n"); err != nil {
		return fmt.Errorf("finish progress line: %w", err)
	}
	return nil
}

func (t *Text) bar(h reporter.Handle) (*textBar, error) {
	bar, ok := h.(*textBar)
	if !ok || bar == nil {
		return nil, fmt.Errorf("text display: foreign handle %T", h)
	}
	return bar, nil
}

// renderLine formats "desc: 50% |#####     | 5/10".
func renderLine(width, completed, total int, description string) string {
	pct := percent(completed, total)
	filled := min(width*pct/100, width)
	var b strings.Builder
	if description != "" {
		b.WriteString(description)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%d%% |%s%s| %d/%d",
		pct,
		strings.Repeat("#", filled),
		strings.Repeat(" ", width-filled),
		completed,
		total,
	)
	return b.String()
}
