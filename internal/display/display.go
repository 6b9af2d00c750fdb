package display

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

// Backend names accepted by New.
const (
	BackendText  = "text"
	BackendPterm = "pterm"
	BackendLog   = "log"
	BackendNone  = "none"
)

// OptionWidth overrides the bar width for one stage. Values must be ints.
const OptionWidth = "width"

// New returns the display named by backend. out is used by the text and pterm
// backends, logger by the log backend.
func New(backend string, out io.Writer, width int, logger *zap.Logger) (reporter.Display, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendText, "":
		return NewText(out, width), nil
	case BackendPterm:
		return NewPterm(out), nil
	case BackendLog:
		return NewLog(logger), nil
	case BackendNone:
		return reporter.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown display backend %q", backend)
	}
}

func intOption(opts reporter.DisplayOptions, key string, def int) int {
	if v, ok := opts[key].(int); ok && v > 0 {
		return v
	}
	return def
}

func percent(completed, total int) int {
	if total <= 0 {
		return 100
	}
	return completed * 100 / total
}
