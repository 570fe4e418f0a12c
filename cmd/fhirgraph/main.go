// Command fhirgraph loads FHIR R4 resources from a server into a Neo4j
// graph: fetch page by page, map resources to nodes and relationships,
// upsert them idempotently, then optionally resolve placeholder references.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fhirgraph/fhirgraph/engine/etl"
	"github.com/fhirgraph/fhirgraph/engine/fhir"
	"github.com/fhirgraph/fhirgraph/engine/graph"
	"github.com/fhirgraph/fhirgraph/engine/mapper"
	"github.com/fhirgraph/fhirgraph/pkg/metrics"
)

type options struct {
	neo4jURI  string
	neo4jUser string
	neo4jPass string
	neo4jDB   string

	fhirBase     string
	resources    []string
	delete       bool
	resolve      bool
	pageSize     int
	limit        int
	noValidation bool
	rateLimit    float64

	parallel bool
	workers  int
	strict   bool
	dryRun   bool

	logLevel    string
	metricsPort int
}

func (o *options) validate() error {
	if !o.delete && !o.resolve && len(o.resources) == 0 {
		return errors.New("nothing to do: pass --delete, --resolve or at least one --resource")
	}
	if len(o.resources) > 0 && o.fhirBase == "" {
		return errors.New("--fhir is required when resources are given")
	}
	if o.pageSize <= 0 {
		return errors.New("--page-size must be positive")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fhirgraph:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "fhirgraph",
		Short:         "Load FHIR R4 resources into a Neo4j graph",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindEnv(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.neo4jURI, "neo4j", "neo4j://localhost:7687", "Neo4j connection URI")
	f.StringVar(&opts.neo4jUser, "neo4j-user", "neo4j", "Neo4j user")
	f.StringVar(&opts.neo4jPass, "neo4j-pass", "", "Neo4j password (or FHIRGRAPH_NEO4J_PASS)")
	f.StringVar(&opts.neo4jDB, "neo4j-db", "", "Neo4j database name (server default when empty)")
	f.StringVar(&opts.fhirBase, "fhir", "", "FHIR server base URL")
	f.StringArrayVarP(&opts.resources, "resource", "r", nil, "resource type to transform, repeatable, processed in order")
	f.BoolVar(&opts.delete, "delete", false, "delete all graph content before transforming")
	f.BoolVar(&opts.resolve, "resolve", false, "resolve placeholder references after transforming")
	f.IntVar(&opts.pageSize, "page-size", fhir.DefaultPageSize, "resources per search page")
	f.IntVar(&opts.limit, "limit", 0, "stop after this many resources per type, 0 for all")
	f.BoolVar(&opts.noValidation, "no-validation", false, "skip structural validation of fetched resources")
	f.Float64Var(&opts.rateLimit, "rate-limit", 0, "max requests per second against the FHIR server, 0 for unlimited")
	f.BoolVar(&opts.parallel, "parallel", false, "map and write each page's resources concurrently")
	f.IntVar(&opts.workers, "workers", 0, "concurrency per page when --parallel, 0 for a default")
	f.BoolVar(&opts.strict, "strict", false, "abort a type on the first mapping or validation error")
	f.BoolVar(&opts.dryRun, "dry-run", false, "write to an in-memory store instead of Neo4j")
	f.StringVar(&opts.logLevel, "log", "info", "log level: debug, info, warn, error")
	f.IntVar(&opts.metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port, 0 to disable")
	return cmd
}

// bindEnv fills unset flags from FHIRGRAPH_* environment variables, so the
// Neo4j password never has to appear on a command line.
func bindEnv(flags *pflag.FlagSet) error {
	viper.SetEnvPrefix("FHIRGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	var err error
	flags.VisitAll(func(fl *pflag.Flag) {
		if err != nil || fl.Changed || !viper.IsSet(fl.Name) {
			return
		}
		err = fl.Value.Set(viper.GetString(fl.Name))
	})
	return err
}

func run(ctx context.Context, o *options) error {
	log := newLogger(o.logLevel)

	reg := metrics.New()
	if o.metricsPort > 0 {
		reg.ServeAsync(o.metricsPort, log)
	}

	var store graph.Store
	if o.dryRun {
		log.Info("dry run, writing to an in-memory store")
		store = graph.NewMemStore()
	} else {
		s, err := graph.NewNeo4jStore(ctx, o.neo4jURI, o.neo4jUser, o.neo4jPass, o.neo4jDB)
		if err != nil {
			return fmt.Errorf("connect neo4j: %w", err)
		}
		log.Info("connected to neo4j", "uri", o.neo4jURI)
		store = s
	}
	defer store.Close(ctx)

	var source etl.Source
	if o.fhirBase != "" {
		copts := []fhir.Option{}
		if o.rateLimit > 0 {
			copts = append(copts, fhir.WithRateLimit(o.rateLimit, 1))
		}
		if o.noValidation {
			copts = append(copts, fhir.WithoutValidation())
		}
		client := fhir.New(o.fhirBase, copts...)
		cs, err := client.Metadata(ctx)
		if err != nil {
			return fmt.Errorf("fhir connection check: %w", err)
		}
		log.Info("connected to fhir server",
			"base", o.fhirBase,
			"fhir_version", cs.FHIRVersion,
			"implementation", cs.Implementation.Description)
		source = etl.FHIRSource(client)
	}

	job := etl.New(source, store, mapper.DefaultRegistry(), log, reg, etl.Config{
		Resources: o.resources,
		Delete:    o.delete,
		Resolve:   o.resolve,
		PageSize:  o.pageSize,
		Limit:     o.limit,
		Parallel:  o.parallel,
		Workers:   o.workers,
		Strict:    o.strict,
	})
	report, err := job.Run(ctx)
	if report != nil {
		report.LogSummary(log)
	}
	return err
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
