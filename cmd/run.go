package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/stage-progress/internal/app"
	"github.com/JakeFAU/stage-progress/internal/demo"
)

type runFlags struct {
	initJobs int
	mainJobs int
	failAt   int
}

// newRunCmd creates the 'run' subcommand, which executes one demo workload.
func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the two-stage demo workload",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runDemo(cmd, appInstance, flags)
		},
	}
	addRunFlags(cmd, &flags)
	return cmd
}

func addRunFlags(cmd *cobra.Command, flags *runFlags) {
	cmd.Flags().IntVar(&flags.initJobs, "init-jobs", -1, "initialization jobs (overrides demo.init_jobs)")
	cmd.Flags().IntVar(&flags.mainJobs, "main-jobs", -1, "main jobs (overrides demo.main_jobs)")
	cmd.Flags().IntVar(&flags.failAt, "fail-at", -1, "abort after this many main jobs (overrides demo.fail_at)")
}

func runDemo(cmd *cobra.Command, a *app.App, flags runFlags) error {
	cfg := a.Config().Demo
	w := demo.Worker{
		InitJobs:  pick(flags.initJobs, cfg.InitJobs),
		MainJobs:  pick(flags.mainJobs, cfg.MainJobs),
		StepDelay: cfg.StepDelay,
		FailAt:    pick(flags.failAt, cfg.FailAt),
		Sleeper:   a.Clock(),
		Logger:    a.Logger().Named("demo"),
	}
	r := app.NewReporter[int](a)
	a.Logger().Info("demo run starting",
		zap.Int("init_jobs", w.InitJobs),
		zap.Int("main_jobs", w.MainJobs),
		zap.Int("fail_at", w.FailAt),
	)
	if err := w.Run(cmd.Context(), r); err != nil {
		return fmt.Errorf("demo run: %w", err)
	}
	a.Logger().Info("demo run finished")
	return nil
}

func pick(flag, cfg int) int {
	if flag >= 0 {
		return flag
	}
	return cfg
}
