package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/deploybot/deploybot/pkg/docker"
	"github.com/deploybot/deploybot/pkg/git"
	"github.com/deploybot/deploybot/pkg/http/daemon"
	"github.com/deploybot/deploybot/pkg/job"
	"github.com/deploybot/deploybot/pkg/kube"
	"github.com/deploybot/deploybot/pkg/notify"
	"github.com/deploybot/deploybot/pkg/pipeline"
	"github.com/deploybot/deploybot/pkg/pki"
	"github.com/deploybot/deploybot/pkg/watch"
)

var version = "unversioned"

const shutdownTimeout = 10 * time.Second

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  deployd builds, deploys and watches a service for each signed deploy request.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}

	v := viper.New()
	configFile := fs.String("config", "", "config file supplying any of the flags below, keyed by flag name")
	versionFlag := fs.Bool("version", false, "get version number")

	// Logger component.
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	defineConfigFlags(fs, v, func(err error) {
		logger.Log("err", err)
		os.Exit(1)
	})

	fs.Parse(os.Args[1:])

	if *versionFlag {
		fmt.Println(version)
		os.Exit(0)
	}

	logger.Log("version", version)

	cfg, err := loadConfig(v, *configFile)
	if err != nil {
		logger.Log("event", "config_invalid", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// Notifications outlive the worker, so that its last events are
	// queued before the dispatcher stops.
	notifyStop := make(chan struct{})
	notifyWg := &sync.WaitGroup{}
	dispatcher := notify.NewDispatcher(
		notify.NewSlack(notify.SlackConfig{
			URL:      cfg.SlackURL,
			Token:    cfg.SlackToken,
			Channel:  cfg.SlackChannel,
			Username: cfg.SlackUsername,
			Colors:   cfg.slackColors(),
		}),
		rate.NewLimiter(rate.Limit(cfg.NotifyRate), 1),
		log.With(logger, "component", "notify"),
		notifyStop, notifyWg,
	)
	notifyWg.Add(1)
	go dispatcher.Loop(notifyStop, notifyWg)

	source := git.NewSource(cfg.GitSSHKey, log.With(logger, "component", "git"))
	logger.Log("event", "git_ssh_key", "path", source.KeyPath())

	var stages pipeline.Stages
	{
		stages.Source = source

		cli, err := docker.NewClient(cfg.DockerHost)
		if err != nil {
			logger.Log("event", "docker_client_error", "err", err)
			os.Exit(1)
		}
		builder, err := docker.NewBuilder(cli, cfg.RegistryAuth, log.With(logger, "component", "docker"))
		if err != nil {
			logger.Log("event", "docker_client_error", "err", err)
			os.Exit(1)
		}
		stages.Builder = builder

		stages.Deployer = kube.NewStage(kube.NewKubectl(cfg.Kubectl), log.With(logger, "component", "kube"))
		stages.Watcher = watch.NewStage(watch.CommandChecker{}, watch.RealClock(), log.With(logger, "component", "watch"))
	}

	orchestrator := pipeline.NewOrchestrator(stages, dispatcher, log.With(logger, "component", "pipeline"))
	worker := pipeline.NewWorker(
		job.NewQueue(1),
		orchestrator,
		pipeline.Workspace{Base: cfg.WorkspaceDir},
		&job.StatusCache{Size: cfg.StatusCacheSize},
		log.With(logger, "component", "worker"),
	)
	workerWg := &sync.WaitGroup{}
	workerWg.Add(1)
	go worker.Loop(gctx, workerWg)

	server := daemon.NewServer(
		pki.NewGate(cfg.PKIDir, log.With(logger, "component", "pki")),
		worker,
		source.KeyPath(),
		map[string]daemon.HealthChecker{
			"notify": dispatcher,
			"worker": worker,
		},
		log.With(logger, "component", "api"),
	)
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: daemon.NewHandler(server, daemon.NewRouter()),
	}

	g.Go(func() error {
		logger.Log("event", "http_listening", "addr", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Log("event", "shutting_down", "err", err)

	workerWg.Wait()
	close(notifyStop)
	notifyWg.Wait()
	logger.Log("exiting", "clean")
	if err != nil {
		os.Exit(1)
	}
}
