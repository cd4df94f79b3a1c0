package config

import "github.com/urfave/cli/v3"

// Pipeline holds workflow execution configuration
type Pipeline struct {
	Workflows  string
	DefaultTag string
	Workers    int
	LogDir     string
	WorkDir    string
}

// Flags returns CLI flags for pipeline configuration
func (c *Pipeline) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "workflows",
			Usage:       "Workflow file or directory of *.yml files",
			Value:       "./workflows",
			Destination: &c.Workflows,
			Sources:     cli.EnvVars("DROVER_WORKFLOWS"),
		},
		&cli.StringFlag{
			Name:        "default-tag",
			Usage:       "Image tag template used when a run has no explicit tag",
			Value:       "sha-${short_commit}",
			Destination: &c.DefaultTag,
			Sources:     cli.EnvVars("DROVER_DEFAULT_TAG"),
		},
		&cli.IntFlag{
			Name:        "workers",
			Usage:       "Maximum jobs running concurrently within one run",
			Value:       2,
			Destination: &c.Workers,
			Sources:     cli.EnvVars("DROVER_WORKERS"),
		},
		&cli.StringFlag{
			Name:        "log-dir",
			Usage:       "Directory for per-job log files (default under the system temp dir)",
			Destination: &c.LogDir,
			Sources:     cli.EnvVars("DROVER_LOG_DIR"),
		},
		&cli.StringFlag{
			Name:        "work-dir",
			Usage:       "Parent directory for per-run clone workspaces",
			Destination: &c.WorkDir,
			Sources:     cli.EnvVars("DROVER_WORK_DIR"),
		},
	}
}
