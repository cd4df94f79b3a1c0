package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/cli/config"
	"github.com/m-mizutani/drover/pkg/usecase"
)

func cmdValidate() *cli.Command {
	var pipelineCfg config.Pipeline

	return &cli.Command{
		Name:  "validate",
		Usage: "Parse and validate workflow files",
		Flags: pipelineCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			workflows, err := usecase.LoadWorkflows(pipelineCfg.Workflows)
			if err != nil {
				color.New(color.FgRed).Fprintln(os.Stderr, "invalid workflow configuration")
				return err
			}

			ok := color.New(color.FgGreen)
			for _, w := range workflows {
				branches := strings.Join(w.On.Push.Branches, ", ")
				if branches == "" {
					branches = "*"
				}
				fmt.Fprintf(os.Stdout, "%s %s  jobs=%d  branches=%s\n",
					ok.Sprint("ok"), w.Name, len(w.Jobs), branches,
				)
			}
			fmt.Fprintf(os.Stdout, "%d workflow(s) valid\n", len(workflows))
			return nil
		},
	}
}
