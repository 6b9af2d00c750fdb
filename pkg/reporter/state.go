package reporter

// State is a read-only snapshot of one registered stage.
type State[K comparable] struct {
	Stage K
	// Total is the amount of work registered for the stage.
	Total int
	// Completed is the amount of work acknowledged so far.
	Completed int
	// Description is the template supplied at registration or via SetDescription.
	Description string
	// Label is the description as last rendered for the display.
	Label      string
	Suppressed bool
}

// Fraction returns Completed/Total in [0, 1]. A stage with no work is complete.
func (s State[K]) Fraction() float64 {
	if s.Total <= 0 {
		return 1
	}
	return float64(s.Completed) / float64(s.Total)
}

// Remaining returns the amount of registered work not yet acknowledged.
func (s State[K]) Remaining() int {
	return s.Total - s.Completed
}

// view is the display side of a stage: either suppressed or backed by an
// adapter handle.
type view interface {
	isView()
}

type suppressedView struct{}

type activeView struct {
	handle  Handle
	created bool
	closed  bool
}

func (suppressedView) isView() {}
func (*activeView) isView()    {}

type stage[K comparable] struct {
	key       K
	total     int
	completed int
	template  string
	label     string
	options   DisplayOptions
	view      view
	seq       uint64
}

func (s *stage[K]) snapshot() State[K] {
	_, suppressed := s.view.(suppressedView)
	return State[K]{
		Stage:       s.key,
		Total:       s.total,
		Completed:   s.completed,
		Description: s.template,
		Label:       s.label,
		Suppressed:  suppressed,
	}
}
