package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const appName = "hrconsole"

func main() {
	app := &cli.App{
		Name:  appName,
		Usage: "Sign in to the HR portal and track attendance from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Usage:   "Backend base URL, overrides HR_API_BASE_URL",
				EnvVars: []string{"HR_API_BASE_URL"},
			},
		},
		Commands: commands(),
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg(appName)
	}
}
