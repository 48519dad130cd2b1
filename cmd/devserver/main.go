package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-hr-console/internal/config"
	"github.com/jrsteele09/go-hr-console/internal/logging"
	"github.com/jrsteele09/go-hr-console/server"
	"github.com/jrsteele09/go-hr-console/server/otprepo"
	"github.com/jrsteele09/go-hr-console/server/timetrackerrepo"
	refreshrepofake "github.com/jrsteele09/go-hr-console/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/go-hr-console/users/repofake"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var errPanic = errors.New("panic recovered")

func main() {
	app := &cli.App{
		Name:  "hr-devserver",
		Usage: "Development backend for the HR console",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen address, overrides PORT",
			},
			&cli.BoolFlag{
				Name:  "seed",
				Value: true,
				Usage: "Create demo employees when the directory is empty",
			},
		},
		Action: func(c *cli.Context) error {
			for {
				err := run(c)
				if !errors.Is(err, errPanic) {
					return err
				}
				log.Err(err).Msg("restarting server")
				time.Sleep(1 * time.Second)
			}
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run(c *cli.Context) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errPanic
		}
	}()

	env, err := config.DecodeEnv()
	if err != nil {
		return err
	}
	if port := c.String("port"); port != "" {
		env.Port = port
	}
	cfg := config.From(env)
	logging.Setup(cfg.GetEnv(), cfg.GetLogLevel())
	displayAppname(cfg.GetAppName())

	repos := server.Repos{
		Users:         fakeuserrepo.NewFakeUserRepo(),
		OTPs:          otprepo.NewInMemoryRepo(),
		TimeTrackers:  timetrackerrepo.NewInMemoryRepo(),
		RefreshTokens: refreshrepofake.NewFakeRefreshTokenRepo(),
	}
	if c.Bool("seed") {
		if _, err := server.Bootstrap(repos.Users); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}

	handler, err := server.New(cfg, repos)
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: cfg.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- listenAndServe(srv)
	}()

	select {
	case err := <-listenErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
