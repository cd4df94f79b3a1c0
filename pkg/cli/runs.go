package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/cli/config"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/infra/store"
)

func cmdRuns() *cli.Command {
	var (
		limit    int64
		storeCfg config.Store
	)

	flags := []cli.Flag{
		&cli.Int64Flag{
			Name:        "limit",
			Usage:       "Maximum number of runs to list",
			Value:       20,
			Destination: &limit,
		},
	}
	flags = append(flags, storeCfg.Flags()...)

	return &cli.Command{
		Name:      "runs",
		Usage:     "Show recorded workflow runs",
		ArgsUsage: "[run-id]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if !storeCfg.Enabled() {
				return goerr.New("run store is not configured")
			}

			st, err := store.Open(ctx, storeCfg.Path)
			if err != nil {
				return goerr.Wrap(err, "failed to open run store")
			}
			defer st.Close()

			if id := c.Args().First(); id != "" {
				if !model.ValidRunID(id) {
					return goerr.New("invalid run ID", goerr.V("run_id", id))
				}
				run, err := st.GetRun(ctx, id)
				if err != nil {
					return err
				}
				printRunDetail(run)
				return nil
			}

			runs, err := st.ListRuns(ctx, int(limit))
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(os.Stdout, "no runs recorded")
				return nil
			}

			fmt.Fprintf(os.Stdout, "%-36s  %-18s  %-20s  %-12s  %-9s  %s\n",
				"ID", "STATUS", "WORKFLOW", "BRANCH", "COMMIT", "STARTED")
			for _, r := range runs {
				commit := r.Commit
				if len(commit) > 7 {
					commit = commit[:7]
				}
				fmt.Fprintf(os.Stdout, "%-36s  %-18s  %-20s  %-12s  %-9s  %s\n",
					r.ID, colorStatus(r.Status), r.Workflow, r.Branch, commit,
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				)
			}
			return nil
		},
	}
}

func printRunDetail(run *model.Run) {
	fmt.Fprintf(os.Stdout, "run:        %s\n", run.ID)
	fmt.Fprintf(os.Stdout, "workflow:   %s\n", run.Workflow)
	fmt.Fprintf(os.Stdout, "repository: %s@%s (%s)\n", run.Repository, run.Commit, run.Branch)
	fmt.Fprintf(os.Stdout, "tag:        %s\n", run.Tag)
	fmt.Fprintf(os.Stdout, "group:      %s\n", run.Group)
	fmt.Fprintf(os.Stdout, "status:     %s\n", colorStatus(run.Status))
	if run.Image != "" {
		fmt.Fprintf(os.Stdout, "image:      %s\n", run.Image)
	}
	if run.Error != "" {
		fmt.Fprintf(os.Stdout, "error:      %s\n", run.Error)
	}
	if !run.StartedAt.IsZero() {
		fmt.Fprintf(os.Stdout, "started:    %s\n", run.StartedAt.Local().Format(time.RFC3339))
		fmt.Fprintf(os.Stdout, "duration:   %s\n", run.Duration().Round(time.Millisecond))
	}
	fmt.Fprintln(os.Stdout, "jobs:")
	for _, j := range run.Jobs {
		fmt.Fprintf(os.Stdout, "  %s %s (%s)\n", colorStatus(j.Status), j.Name, j.Duration().Round(time.Millisecond))
		if j.Error != "" {
			fmt.Fprintf(os.Stdout, "      %s\n", j.Error)
		}
	}
}
