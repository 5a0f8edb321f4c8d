package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	drydock "github.com/opst/drydock/pkg"
	configs "github.com/opst/drydock/pkg/configs/backend"
	kpool "github.com/opst/drydock/pkg/conn/postgres/pool"
	"github.com/opst/drydock/pkg/conn/postgres/schema"
	"github.com/opst/drydock/pkg/utils/try"
)

func main() {
	pconfig := flag.String(
		"config", os.Getenv("DRYDOCK_CONFIG"), "path to config file",
	)
	schemaRepo := flag.String("schema-repo", os.Getenv("DRYDOCK_SCHEMA"), "schema repository path")
	loglevel := flag.String("loglevel", "warn", "log level. debug|info|warn|error|off")

	flag.Parse()

	logger := log.Default()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conf := try.To(configs.LoadBackendConfig(*pconfig)).OrFatal(logger)
	pool := try.To(kpool.Connect(ctx, conf.Database())).OrFatal(logger)
	defer pool.Close()
	{
		ctx_, ccan := schema.New(pool, *schemaRepo).Context(ctx)
		defer ccan()
		ctx = ctx_
	}

	repos := drydock.AttachRepositories(pool, conf.Jobs())
	collab := try.To(drydock.Connect(conf, logger)).OrFatal(logger)
	dd := drydock.Attach(conf, repos, collab, logger)

	server := BuildServer(
		Services{
			Builds:       repos.Builds,
			Orchestrator: dd.Orchestrator(),
			Coordinator:  dd.Coordinator(),
			Isolation:    dd.Isolation(),
			Clusters:     dd.Clusters(),
			Publisher:    dd.Publisher(),
		},
		*loglevel,
	)
	for _, r := range server.Routes() {
		server.Logger.Debugf("- mount handler: %s %s", strings.ToUpper(r.Method), r.Path)
	}

	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		if err := server.Start(fmt.Sprintf(":%d", conf.Port())); err != nil && err != http.ErrServerClosed {
			ch <- err
		}
	}()

	exit := 0
	select {
	case <-ctx.Done():
		server.Logger.Infof("context has been done: %s, cause: %s", ctx.Err(), context.Cause(ctx))
		if context.Cause(ctx) != context.Canceled {
			// schema is changed.
			exit = 1
		}
	case err := <-ch:
		if err != nil {
			server.Logger.Error("server stops with error:", err)
			exit = 1
		}
	}

	server.Logger.Info("shutting down...")
	qctx, qcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer qcancel()
	if err := server.Shutdown(qctx); err != nil {
		server.Logger.Errorf("shutdown with error. %+v", err)
		exit = 1
	}
	if exit != 0 {
		pool.Close()
		os.Exit(exit)
	}
}
