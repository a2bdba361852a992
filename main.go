package main

import (
	"context"
	"errors"
	"os"

	"taskflow-api/core/logger"
	"taskflow-api/core/server"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "taskflow-api",
		Usage: "task API with external calendar sync",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API, push worker and sync scheduler",
				Action: func(c *cli.Context) error {
					return server.Run(c.Context)
				},
			},
			{
				Name:  "sync",
				Usage: "run one calendar sync and print the result",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "user id to sync"},
					&cli.BoolFlag{Name: "all", Usage: "sync every active user"},
				},
				Action: func(c *cli.Context) error {
					userID, all := c.String("user"), c.Bool("all")
					if userID == "" && !all {
						return errors.New("one of --user or --all is required")
					}
					return server.RunSync(c.Context, userID, all)
				},
			},
		},
		Action: func(c *cli.Context) error {
			return server.Run(c.Context)
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		logger.Error("run server error", "error", err)
		os.Exit(1)
	}
}
