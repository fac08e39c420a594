package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/roadmatch/pkg/logger"
	"github.com/malbeclabs/roadmatch/pkg/matcher"
	"github.com/malbeclabs/roadmatch/pkg/metrics"
	"github.com/malbeclabs/roadmatch/pkg/network"
	"github.com/malbeclabs/roadmatch/pkg/spatial"
	"github.com/malbeclabs/roadmatch/pkg/trace"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultMetricsAddr = "0.0.0.0:0"
	defaultOutputDir   = "."

	tracesPathEnvVar  = "ROADMATCH_TRACES_PATH"
	networkPathEnvVar = "ROADMATCH_NETWORK_PATH"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "address to listen on for prometheus metrics (empty to disable)")

	tracesPathFlag := flag.String("traces", "", "path to the GPS traces CSV (or set ROADMATCH_TRACES_PATH env var)")
	networkPathFlag := flag.String("network", "", "path to the network links GeoJSON (or set ROADMATCH_NETWORK_PATH env var)")
	parametersPathFlag := flag.String("parameters", "", "optional path to a YAML parameters file")
	outputDirFlag := flag.String("output-dir", defaultOutputDir, "directory for result files")
	workersFlag := flag.Int("workers", 0, "number of parallel workers (default: all CPUs)")
	ignoreErrorsFlag := flag.Bool("ignore-errors", false, "map-match traces that fail data-quality checks anyway")
	speedFieldFlag := flag.String("speed-field", "", "per-link attribute holding the speed cap used to filter candidates")

	flag.Parse()

	// Load .env file. godotenv does not override existing env vars, so
	// process env and explicit exports take precedence.
	_ = godotenv.Load()

	if env := os.Getenv(tracesPathEnvVar); env != "" && *tracesPathFlag == "" {
		*tracesPathFlag = env
	}
	if env := os.Getenv(networkPathEnvVar); env != "" && *networkPathFlag == "" {
		*networkPathFlag = env
	}
	if *tracesPathFlag == "" {
		return fmt.Errorf("traces path is required (--traces or %s)", tracesPathEnvVar)
	}
	if *networkPathFlag == "" {
		return fmt.Errorf("network path is required (--network or %s)", networkPathEnvVar)
	}

	log := logger.New(*verboseFlag)
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *metricsAddrFlag != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: *metricsAddrFlag, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
		defer server.Close()
	}

	params := matcher.DefaultParameters()
	if *parametersPathFlag != "" {
		var err error
		params, err = matcher.LoadParameters(*parametersPathFlag)
		if err != nil {
			return err
		}
	}

	links, err := network.LoadGeoJSON(*networkPathFlag)
	if err != nil {
		return err
	}
	net, err := network.New(network.Config{
		Logger:       log,
		Links:        links,
		CostDiscount: params.MapMatching.CostDiscount,
	})
	if err != nil {
		return fmt.Errorf("failed to build network: %w", err)
	}
	if *speedFieldFlag != "" {
		if err := net.SetSpeedField(*speedFieldFlag); err != nil {
			return err
		}
	}
	log.Info("network loaded", "links", net.Size())

	geoms := map[int64]orb.LineString{}
	for _, id := range net.LinkIDs() {
		g, err := net.LinkGeometry(id)
		if err != nil {
			return err
		}
		geoms[id] = g
	}
	index, err := spatial.NewIndex(spatial.IndexConfig{Logger: log, Links: geoms})
	if err != nil {
		return fmt.Errorf("failed to build spatial index: %w", err)
	}

	traces, err := trace.LoadCSV(*tracesPathFlag)
	if err != nil {
		return err
	}
	log.Info("traces loaded", "traces", len(traces))

	batch, err := matcher.NewBatch(matcher.BatchConfig{
		Logger:       log,
		Network:      net,
		Index:        index,
		Params:       params,
		Workers:      *workersFlag,
		IgnoreErrors: *ignoreErrorsFlag,
	})
	if err != nil {
		return err
	}

	results, err := batch.Run(ctx, traces)
	if err != nil {
		return err
	}

	if err := writeResults(*outputDirFlag, params, results); err != nil {
		return err
	}
	log.Info("results written", "dir", *outputDirFlag)
	return nil
}
