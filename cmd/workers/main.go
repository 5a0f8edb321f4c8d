package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	drydock "github.com/opst/drydock/pkg"
	configs "github.com/opst/drydock/pkg/configs/backend"
	kpool "github.com/opst/drydock/pkg/conn/postgres/pool"
	"github.com/opst/drydock/pkg/conn/postgres/schema"
	"github.com/opst/drydock/pkg/domain"
	"github.com/opst/drydock/pkg/loop/recurring"
	"github.com/opst/drydock/pkg/utils/args"
	"github.com/opst/drydock/pkg/utils/filewatch"
	"github.com/opst/drydock/pkg/utils/try"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	defer cancel()

	pconfig := flag.String(
		"config", os.Getenv("DRYDOCK_CONFIG"), "path to config file",
	)
	pSchemaRepo := flag.String(
		"schema-repo", os.Getenv("DRYDOCK_SCHEMA"), "schema repository path",
	)
	pmetrics := flag.String(
		"metrics", os.Getenv("DRYDOCK_METRICS"), `address serving metrics at "/metrics" (e.g. ":9090"). no metrics are served if empty.`,
	)
	loopType := args.Parser(domain.AsLoopType)
	flag.Var(
		loopType, "type",
		"one of loop type (build|instance|dock|isolation|cluster|housekeeping)",
	)
	policy := args.Parser(recurring.ParsePolicy)
	flag.Var(
		policy, "policy",
		`loop policy (syntax: forever[:COOLDOWN]|backlog, default: forever:5s).`+
			` "forever[:COOLDOWN]" = run forever until error. When there are no jobs, `+
			`wait COOLDOWN (optional duration. default: 0) as interval.`+
			` "backlog" = run until error or there are no jobs.`,
	)
	pTimeout := flag.Duration(
		"task-timeout", 0, "cancel each run of the loop after this duration. 0 means no limit.",
	)
	flag.Parse()

	if !loopType.IsSet() {
		logger.Fatal("-type is required")
	}
	loopPolicy := try.To(policy.OrElse("forever:5s")).OrFatal(logger)

	{
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, *pconfig)
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	conf := try.To(configs.LoadBackendConfig(*pconfig)).OrFatal(logger)
	pool := try.To(kpool.Connect(ctx, conf.Database())).OrFatal(logger)
	defer pool.Close()

	{
		ctx_, ccan := schema.New(pool, *pSchemaRepo).Context(ctx)
		defer ccan()
		ctx = ctx_
	}

	repos := drydock.AttachRepositories(pool, conf.Jobs())
	collab := try.To(drydock.Connect(conf, logger)).OrFatal(logger)
	dd := drydock.Attach(conf, repos, collab, logger)

	reg := prometheus.NewRegistry()
	metrics := NewJobMetrics(reg)
	if addr := *pmetrics; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("[warn] metrics server stopped: %s", err)
			}
		}()
		defer server.Close()
	}

	logger.Printf(
		`start loop "%s" /w policy "%s"`,
		loopType.Value().String(), loopPolicy.String(),
	)

	err := StartLoop(
		ctx, logger, repos.Jobs, repos.EventLocks, Routes(EnginesOf(dd)), metrics,
		LoopManifest{
			Type:      loopType.Value(),
			Policy:    recurring.UntilError(loopPolicy),
			Retention: conf.Jobs().Retention(),
			Timeout:   *pTimeout,
		},
	)

	if err == nil {
		return
	} else if errors.Is(err, context.Canceled) {
		logger.Fatal(err, "(loop context is cancelled by:", context.Cause(ctx), ")")
	}
	logger.Fatal(err)
}
