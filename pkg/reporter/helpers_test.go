package reporter

import "time"

type refreshCall struct {
	handle      int
	completed   int
	total       int
	description string
}

// recordingDisplay hands out sequential integer handles and records every call.
type recordingDisplay struct {
	next       int
	creates    []string
	options    []DisplayOptions
	refreshes  []refreshCall
	closes     []int
	refreshErr error
}

func (d *recordingDisplay) Create(_ int, description string, opts DisplayOptions) (Handle, error) {
	d.next++
	d.creates = append(d.creates, description)
	d.options = append(d.options, opts)
	return d.next, nil
}

func (d *recordingDisplay) Refresh(h Handle, completed, total int, description string) error {
	d.refreshes = append(d.refreshes, refreshCall{
		handle:      h.(int),
		completed:   completed,
		total:       total,
		description: description,
	})
	return d.refreshErr
}

func (d *recordingDisplay) Close(h Handle) error {
	d.closes = append(d.closes, h.(int))
	return nil
}

func (d *recordingDisplay) calls() int {
	return len(d.creates) + len(d.refreshes) + len(d.closes)
}

func (d *recordingDisplay) lastRefresh() refreshCall {
	if len(d.refreshes) == 0 {
		return refreshCall{}
	}
	return d.refreshes[len(d.refreshes)-1]
}

type recordingEmitter struct {
	events []Event
}

func (e *recordingEmitter) Emit(evt Event) {
	e.events = append(e.events, evt)
}

type fixedClock struct{}

func (fixedClock) Now() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

// steppingClock advances by step on every call.
type steppingClock struct {
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}
