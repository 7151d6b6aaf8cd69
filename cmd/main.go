package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/royalcat/floodgen/pipeline"
	"github.com/urfave/cli/v3"

	_ "github.com/KimMachineGun/automemlimit"
	_ "go.uber.org/automaxprocs"
)

// exitInterrupted tells a supervisor that the run stopped on request and can
// be resumed.
const exitInterrupted = 130

func main() {
	app := &cli.App{
		Name:        "floodgen",
		Description: "Finds buildings inside flood hazard zones, chunk by chunk and resumable",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "fetch buildings, match them against hazard layers and merge the results",
				Flags:  append(configFlags(), runFlags()...),
				Action: run,
			},
			{
				Name:   "merge",
				Usage:  "merge chunk result files left by a previous run",
				Flags:  configFlags(),
				Action: merge,
			},
			{
				Name:   "status",
				Usage:  "print the progress of an unfinished run",
				Flags:  configFlags(),
				Action: status,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		if errors.Is(err, pipeline.ErrInterrupted) {
			os.Exit(exitInterrupted)
		}
		slog.Error("floodgen failed", "error", err)
		os.Exit(1)
	}
}

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:      "config",
			Aliases:   []string{"c"},
			Usage:     "YAML file overriding the defaults",
			TakesFile: true,
		},
		&cli.Float64SliceFlag{
			Name:  "bbox",
			Usage: "south,west,north,east processed as a single region, also accepted as --bbox S W N E",
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			DefaultText: "data_osm_norge",
			TakesFile:   true,
		},
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:        "step",
			Usage:       "chunk size in degrees",
			DefaultText: "0.5",
		},
		&cli.BoolFlag{
			Name:  "resume",
			Usage: "continue from the saved progress",
		},
		&cli.IntFlag{
			Name:  "start-region",
			Usage: "region index to start from (0 based)",
		},
		&cli.StringFlag{
			Name:  "start-chunk",
			Usage: "chunk id to start from within the start region (format lon_lat, e.g. 10.5_60.0)",
		},
		&cli.StringFlag{
			Name:        "hazard-dir",
			DefaultText: "data",
			TakesFile:   true,
		},
		&cli.IntFlag{
			Name:        "threads",
			Aliases:     []string{"t"},
			DefaultText: "max",
		},
		&cli.StringFlag{
			Name:  "listen",
			Usage: "address of the status server, disabled when empty",
		},
		&cli.StringFlag{
			Name:      "stats-file",
			Usage:     "write a runtime report to this file when the run ends",
			TakesFile: true,
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "disable the progress bar",
		},
	}
}
