package reporter

// Handle is an adapter-owned reference to one visible progress representation.
type Handle any

// DisplayOptions carries backend specific settings supplied at registration
// time, such as a bar width or an output override. Adapters ignore keys they
// do not understand.
type DisplayOptions map[string]any

// Display renders stage progress. The Reporter calls Create at most once per
// registered stage, Refresh any number of times, and Close at most once.
// Implementations must tolerate Close on a handle that is already closed and
// must be safe for sequential reuse across stages.
type Display interface {
	Create(total int, description string, opts DisplayOptions) (Handle, error)
	Refresh(h Handle, completed, total int, description string) error
	Close(h Handle) error
}

// Nop is a Display that renders nothing.
type Nop struct{}

// Create returns a nil handle.
func (Nop) Create(int, string, DisplayOptions) (Handle, error) { return nil, nil }

// Refresh does nothing.
func (Nop) Refresh(Handle, int, int, string) error { return nil }

// Close does nothing.
func (Nop) Close(Handle) error { return nil }
