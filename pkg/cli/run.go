package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/cli/config"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/infra/git"
	"github.com/m-mizutani/drover/pkg/infra/store"
	"github.com/m-mizutani/drover/pkg/usecase"
)

func cmdRun() *cli.Command {
	var (
		workflowName string
		tag          string
		dir          string

		registryCfg config.Registry
		notifyCfg   config.Notify
		githubCfg   config.GitHub
		storeCfg    config.Store
		pipelineCfg config.Pipeline
		secretsCfg  config.Secrets
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "workflow",
			Aliases:     []string{"w"},
			Usage:       "Run only the named workflow, even if its branch filter does not match",
			Destination: &workflowName,
		},
		&cli.StringFlag{
			Name:        "tag",
			Aliases:     []string{"t"},
			Usage:       "Image tag for this run (default derives from the commit)",
			Destination: &tag,
		},
		&cli.StringFlag{
			Name:        "dir",
			Aliases:     []string{"C"},
			Usage:       "Repository working copy to run against",
			Value:       ".",
			Destination: &dir,
		},
	}
	flags = append(flags, registryCfg.Flags()...)
	flags = append(flags, notifyCfg.Flags()...)
	flags = append(flags, githubCfg.AppFlags()...)
	flags = append(flags, storeCfg.Flags()...)
	flags = append(flags, pipelineCfg.Flags()...)
	flags = append(flags, secretsCfg.Flags()...)

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run workflows against the local working copy",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			ev, err := git.LocalHead(dir)
			if err != nil {
				return err
			}

			workflows, err := usecase.LoadWorkflows(pipelineCfg.Workflows)
			if err != nil {
				return err
			}

			selected, err := selectWorkflows(workflows, workflowName, ev.Branch)
			if err != nil {
				return err
			}
			if len(selected) == 0 {
				logger.Info("No workflow matches the current branch",
					slog.String("branch", ev.Branch),
				)
				return nil
			}

			deps := &pipelineDeps{
				registry: registryCfg,
				notify:   notifyCfg,
				github:   githubCfg,
				pipeline: pipelineCfg,
				sentryOn: sentry.CurrentHub().Client() != nil,
			}
			if storeCfg.Enabled() {
				st, err := store.Open(ctx, storeCfg.Path)
				if err != nil {
					return goerr.Wrap(err, "failed to open run store")
				}
				defer func() {
					if err := st.Close(); err != nil {
						logger.Warn("Failed to close run store", slog.Any("error", err))
					}
				}()
				deps.store = st
			}

			pipeline, err := buildPipeline(ctx, workflows, secretsCfg.Chain(), deps)
			if err != nil {
				return err
			}

			var failed []string
			for _, w := range selected {
				run, err := pipeline.Dispatch(ctx, w, ev, tag)
				if err != nil {
					return err
				}

				printRun(os.Stdout, run)
				if run.Status != model.StatusSuccess {
					failed = append(failed, run.Workflow)
				}
			}

			if len(failed) > 0 {
				return goerr.New("workflow run failed", goerr.V("workflows", failed))
			}
			return nil
		},
	}
}

// selectWorkflows picks the named workflow, or every workflow whose
// branch filter matches.
func selectWorkflows(workflows []*model.Workflow, name, branch string) ([]*model.Workflow, error) {
	if name != "" {
		for _, w := range workflows {
			if w.Name == name {
				return []*model.Workflow{w}, nil
			}
		}
		return nil, goerr.New("workflow not found", goerr.V("workflow", name))
	}

	var selected []*model.Workflow
	for _, w := range workflows {
		if w.Matches(branch) {
			selected = append(selected, w)
		}
	}
	return selected, nil
}

var statusColors = map[model.RunStatus]*color.Color{
	model.StatusSuccess:   color.New(color.FgGreen),
	model.StatusFailure:   color.New(color.FgRed),
	model.StatusCancelled: color.New(color.FgYellow),
	model.StatusSkipped:   color.New(color.FgHiBlack),
	model.StatusRunning:   color.New(color.FgCyan),
	model.StatusQueued:    color.New(color.FgWhite),
}

func colorStatus(s model.RunStatus) string {
	if c, ok := statusColors[s]; ok {
		return c.Sprint(string(s))
	}
	return string(s)
}

func printRun(w *os.File, run *model.Run) {
	fmt.Fprintf(w, "%s %s  %s  (%s)\n",
		run.Status.Emoji(), run.Workflow, colorStatus(run.Status),
		run.Duration().Round(time.Millisecond),
	)
	for _, j := range run.Jobs {
		fmt.Fprintf(w, "  %s %s (%s)\n", colorStatus(j.Status), j.Name, j.Duration().Round(time.Millisecond))
		if j.Error != "" {
			fmt.Fprintf(w, "      %s\n", j.Error)
		}
	}
	if run.Image != "" {
		fmt.Fprintf(w, "  image: %s\n", run.Image)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", run.Error)
	}
}
