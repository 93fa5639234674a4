// Command photostock is the terminal front end of the photo site. Every
// subcommand mounts the matching view controller, acts, and unmounts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/petermazzocco/photostockage/internal/config"
	"github.com/petermazzocco/photostockage/internal/logger"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: photostock [flags] <command> [args]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-14s %s\n", c.name, c.help)
	}
	fmt.Fprintf(os.Stderr, "\nflags:\n")
	flag.PrintDefaults()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "REST backend base URL")
	flag.StringVar(&cfg.PublicURL, "origin", cfg.PublicURL, "same-origin server base URL")
	flag.StringVar(&cfg.Session.StateFile, "state", cfg.Session.StateFile, "local session file")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := lookup(flag.Arg(0))
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true})
	a, err := newApp(ctx, cfg, log, os.Stdin, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}
	defer a.close()

	runErr := cmd.run(ctx, a, flag.Args()[1:])
	if err := a.saveCookies(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("failed to save backend cookies")
	}
	if runErr != nil {
		printErr(os.Stderr, runErr)
		a.close()
		os.Exit(1)
	}
}
