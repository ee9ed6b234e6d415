package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postern/internal/server"
)

var commandRun = &cobra.Command{
	Use:   "run",
	Short: "Run the server",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	mainCommand.AddCommand(commandRun)
}

func runServer() {
	cfg := loadConfig()

	if cfg.Log.Level != "" {
		level, err := logrus.ParseLevel(cfg.Log.Level)
		if err != nil {
			logrus.Fatal("parse log level: ", err)
		}
		logrus.SetLevel(level)
	}

	srv, err := server.New(cfg, logrus.StandardLogger())
	if err != nil {
		logrus.Fatal("create server: ", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-osSignals
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		logrus.Fatal("run server: ", err)
	}
}
