package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	cnc "github.com/TheAlpha16/awg-cnc"
	"github.com/TheAlpha16/awg-cnc/instrument/keysight"
	"github.com/TheAlpha16/awg-cnc/instrument/siglent"
	"github.com/TheAlpha16/awg-cnc/internal/config"
	"github.com/TheAlpha16/awg-cnc/internal/monitor"
	"github.com/TheAlpha16/awg-cnc/link"
)

var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "configs/awgd.yaml", "configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("awgd v%s (build %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		cfg = config.Default()
		fmt.Fprintln(os.Stderr, "using default configuration")
	}

	log := setupLogger(cfg.Log)
	log.Infof("awgd v%s starting", Version)

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal(err)
	}
	log.Info("awgd stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) (err error) {
	registry := cnc.NewRegistry(log)
	defer func() {
		err = multierr.Append(err, registry.Close())
	}()

	if err := siglent.Register(registry); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	if err := keysight.Register(registry); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	for _, d := range cfg.Devices {
		if err := openDevice(ctx, registry, d, log); err != nil {
			return err
		}
	}

	mon := monitor.NewMonitor(log, suspectDevices(registry))
	metrics := cnc.NewMetrics(mon.Registerer())
	if cfg.Monitor.Enabled {
		mon.StartMetricsServer(cfg.Monitor.MetricsPort)
		mon.StartRuntimeMonitor(ctx, 10*time.Second)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = multierr.Append(err, mon.Shutdown(sctx))
		}()
	}

	opts := []cnc.Option{
		cnc.WithLogger(log),
		cnc.WithMetrics(metrics),
		cnc.WithHandlerTimeout(cfg.Server.HandlerTimeout),
	}
	if cfg.Journal.Enabled {
		journal, jerr := cnc.NewRedisJournal(ctx, &redis.Options{
			Addr:     cfg.Journal.Addr,
			Password: cfg.Journal.Password,
			DB:       cfg.Journal.DB,
		}, cfg.Journal.Channel, cfg.Journal.History)
		if jerr != nil {
			return jerr
		}
		defer func() {
			err = multierr.Append(err, journal.Close())
		}()
		opts = append(opts, cnc.WithJournal(journal))
	}

	transport, err := openTransport(ctx, cfg, log)
	if err != nil {
		return err
	}

	server := cnc.NewCNC(registry, transport, opts...)
	if err := server.Start(ctx); err != nil {
		transport.Close()
		return fmt.Errorf("start server: %w", err)
	}
	log.Infof("serving %d commands on %d devices over %s", len(registry.Commands()), len(registry.Devices()), cfg.Server.Transport)

	<-ctx.Done()
	log.Info("shutting down")
	return server.Shutdown()
}

func openDevice(ctx context.Context, registry *cnc.Registry, d config.DeviceConfig, log *logrus.Logger) error {
	l, err := link.Open(ctx, d.Address, link.Options{
		WriteTimeout: d.WriteTimeout,
		ReadTimeout:  d.ReadTimeout,
		ChunkSize:    d.ChunkSize,
	})
	if err != nil {
		return fmt.Errorf("open device %s: %w", d.Name, err)
	}

	dlog := log.WithField("device", d.Name)
	var inst cnc.Instrument
	switch d.Driver {
	case siglent.Family:
		inst = siglent.New(l, d.CheckErrors, dlog)
	case keysight.Family:
		inst = keysight.New(l, d.CheckErrors, dlog)
	default:
		l.Close()
		return fmt.Errorf("device %s: unknown driver %q", d.Name, d.Driver)
	}

	if err := registry.RegisterDevice(d.Name, inst); err != nil {
		inst.Close()
		return err
	}
	return nil
}

func openTransport(ctx context.Context, cfg *config.Config, log *logrus.Logger) (cnc.Transport, error) {
	switch cfg.Server.Transport {
	case "tcp":
		return cnc.NewTCPTransport(ctx, cfg.Server.Listen, cnc.TCPOptions{
			MaxConnections: cfg.Server.MaxConnections,
			ReceiveTimeout: cfg.Server.ReceiveTimeout,
			Logger:         log,
		})
	case "valkey":
		client, err := cnc.NewValkeyClient(cfg.Valkey.Addr)
		if err != nil {
			return nil, fmt.Errorf("connect valkey %s: %w", cfg.Valkey.Addr, err)
		}
		log.Infof("receiving requests from valkey list %s", cfg.Valkey.Queue)
		return cnc.NewValkeyTransport(client, cfg.Valkey.Queue,
			cnc.WithReceiveTimeout(cfg.Server.ReceiveTimeout),
			cnc.WithReplyTTL(cfg.Valkey.ReplyTTL),
		), nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Server.Transport)
}

func suspectDevices(registry *cnc.Registry) monitor.HealthFunc {
	return func() []string {
		var names []string
		for _, d := range registry.Devices() {
			if d.Suspect() {
				names = append(names, d.Name())
			}
		}
		return names
	}
}

func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Warnf("open log file: %v, logging to stdout", err)
		}
	}

	return log
}
