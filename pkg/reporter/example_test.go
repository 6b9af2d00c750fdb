package reporter_test

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

type printDisplay struct{}

func (printDisplay) Create(total int, description string, _ reporter.DisplayOptions) (reporter.Handle, error) {
	fmt.Printf("open %q (%d units)\n", description, total)
	return description, nil
}

func (printDisplay) Refresh(_ reporter.Handle, completed, total int, description string) error {
	fmt.Printf("%s: %d/%d\n", description, completed, total)
	return nil
}

func (printDisplay) Close(h reporter.Handle) error {
	fmt.Printf("close %q\n", h)
	return nil
}

// ExampleReporter_Update registers two stages and drives them to completion.
func ExampleReporter_Update() {
	r := reporter.New[int](reporter.Config{Display: printDisplay{}})
	_ = r.Register(0, 3, "initializing", nil)
	_ = r.Register(1, 4, "pass {n}", nil)

	_ = r.Update(0, 3, nil)
	_ = r.ForceFinish(0)
	for i := 1; i <= 2; i++ {
		_ = r.Update(1, 2, reporter.Args{"n": i})
	}
	_ = r.ForceFinish(1)
	fmt.Println("registered:", r.NumRegistered())
	// Output:
	// open "initializing" (3 units)
	// initializing: 3/3
	// initializing: 3/3
	// close "initializing"
	// open "pass 1" (4 units)
	// pass 1: 2/4
	// pass 2: 4/4
	// pass 2: 4/4
	// close "pass 1"
	// registered: 0
}

// ExampleGuard_Run shows a failing block whose stages are still finalized.
func ExampleGuard_Run() {
	r := reporter.New[string](reporter.Config{})
	_ = r.Register("fit", 100, "fitting", nil)
	_ = r.Register("other", 40, "unrelated", nil)

	err := r.Scope("fit").Run(func() error {
		_ = r.Update("fit", 50, nil)
		return errors.New("diverged")
	})
	fmt.Println(err)
	fmt.Println(r.RegisteredStages())
	// Output:
	// diverged
	// [other]
}
