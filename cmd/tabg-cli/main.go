package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tabg-cli/internal/app"
	"tabg-cli/internal/config"
	"tabg-cli/internal/events"
	"tabg-cli/internal/history"
	"tabg-cli/internal/logger"
	"tabg-cli/internal/roster"
	"tabg-cli/internal/session"
	"tabg-cli/internal/tui"
)

var log = logger.Named("main")

func main() {
	cli, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "tabg-cli: %v\n", err)
		os.Exit(2)
	}
	if err := run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "tabg-cli: %v\n", err)
		os.Exit(1)
	}
}

func run(cli cliArgs) error {
	logger.Configure()
	if logFile, _, err := logger.SetupFile(logger.DefaultLogPath); err != nil {
		log.Warnf("failed to initialize log file: %v", err)
	} else {
		defer logFile.Close()
	}

	// 首次运行时在默认位置留一份可编辑的配置；显式指定的路径不自动创建。
	if cli.cfgPath == "" {
		if path, created, err := config.WriteDefaultIfMissing(""); err != nil {
			log.Warnf("write default config: %v", err)
		} else if created {
			log.Infof("wrote default config to %s", path)
		}
	}
	cfg, err := config.Load(cli.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = config.ApplyKVOverrides(cfg, cli.overrides)
	cfg.ServerArgs = append(cfg.ServerArgs, cli.serverArgs...)
	log.WithField("source", cfg.Source).Infof("config loaded: server=%q pipe=%s", cfg.ServerPath, cfg.PipeMode)

	queue := events.NewIngestQueue(cfg.PendingCapacity)
	logger.AttachPane(queue.Writer(events.SourceSystem))
	bus := events.NewEventQueue(64)
	defer bus.Close()

	visitors := roster.NewStore(cfg.RosterPath)
	sessions := session.NewStore(cfg.SessionsDir)
	hist := history.New(cfg.HistoryPath)
	recent, err := hist.LoadTexts(history.DefaultLimit)
	if err != nil {
		log.Warnf("load input history: %v", err)
	}

	a, err := app.New(app.Options{
		Config:   cfg,
		Queue:    queue,
		Events:   bus,
		Roster:   visitors,
		Sessions: sessions,
		History:  hist,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		bus.Emit(events.EventQuit, nil)
	}()

	// 界面先订阅事件，再拉起服务器，避免错过 process.started。
	model := tui.New(tui.Options{
		Context: ctx,
		Backend: a,
		Queue:   queue,
		Events:  bus,
		Roster:  visitors,
		Config:  cfg,
		History: recent,
	})
	if err := a.Start(ctx); err != nil {
		log.Warnf("start server: %v", err)
	}

	runErr := tui.Run(model)
	stop()
	shutdownErr := a.Shutdown()
	if err := hist.Compact(history.DefaultLimit); err != nil {
		log.Debugf("compact history: %v", err)
	}
	if runErr != nil {
		runErr = fmt.Errorf("tui: %w", runErr)
	}
	if shutdownErr != nil {
		shutdownErr = fmt.Errorf("shutdown: %w", shutdownErr)
	}
	return errors.Join(runErr, shutdownErr)
}
