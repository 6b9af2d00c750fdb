package reporter

import "fmt"

// Callback observes accepted updates of one stage. It receives the stage key,
// a snapshot taken after the update was committed, and the update's Args.
// A non-nil error stops dispatch and is returned from Update unchanged.
type Callback[K comparable] func(stage K, state State[K], args Args) error

// RegisterCallback appends cb to the ordered callback list of stage. The stage
// does not have to be registered yet. Callbacks are dropped when the stage is
// force-finished.
func (r *Reporter[K]) RegisterCallback(stage K, cb Callback[K]) error {
	if !r.enabled {
		return nil
	}
	if cb == nil {
		return fmt.Errorf("%w: callback for stage %v is nil", ErrInvalidArgument, stage)
	}
	r.callbacks[stage] = append(r.callbacks[stage], cb)
	return nil
}

func (r *Reporter[K]) dispatch(st *stage[K], args Args) error {
	cbs := r.callbacks[st.key]
	if len(cbs) == 0 {
		return nil
	}
	snap := st.snapshot()
	for _, cb := range cbs {
		if err := cb(st.key, snap, args); err != nil {
			return err
		}
	}
	return nil
}
