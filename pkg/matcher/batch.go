package matcher

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sort"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/malbeclabs/roadmatch/pkg/metrics"
	"github.com/malbeclabs/roadmatch/pkg/network"
	"github.com/malbeclabs/roadmatch/pkg/routing"
	"github.com/malbeclabs/roadmatch/pkg/spatial"
	"github.com/malbeclabs/roadmatch/pkg/trace"
)

type BatchConfig struct {
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Network *network.Network
	Index   *spatial.Index
	Params  Parameters

	// NewRouter builds the per-worker shortest-path service over a worker's
	// network clone. Defaults to the in-process Dijkstra engine.
	NewRouter func(n *network.Network) (routing.Router, error)

	// Workers is the number of parallel chunks. Defaults to GOMAXPROCS.
	Workers int

	IgnoreErrors bool
}

func (cfg *BatchConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Network == nil {
		return errors.New("network is required")
	}
	if cfg.Index == nil {
		return errors.New("spatial index is required")
	}
	if err := cfg.Params.Validate(); err != nil {
		return err
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.NewRouter == nil {
		cfg.NewRouter = func(n *network.Network) (routing.Router, error) {
			return routing.NewEngine(routing.EngineConfig{Logger: cfg.Logger, Network: n})
		}
	}
	return nil
}

// Batch fans trace matching out over worker-private drivers. Traces are
// partitioned into disjoint chunks; every worker matches its chunk against
// its own network clone, so the baseline cost vector is shared read-only
// and cost mutations stay per-worker.
type Batch struct {
	log *slog.Logger
	cfg BatchConfig
}

func NewBatch(cfg BatchConfig) (*Batch, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Batch{log: cfg.Logger, cfg: cfg}, nil
}

// Run matches every trace and returns results ordered by trace id.
// Per-trace failures, including traces the driver rejects as structurally
// invalid, are carried in failed results. Run returns an error only when a
// worker cannot be set up (router or driver construction) or the context
// is cancelled.
func (b *Batch) Run(ctx context.Context, traces []trace.Raw) ([]*Result, error) {
	runID := uuid.NewString()
	workers := b.cfg.Workers
	if workers > len(traces) {
		workers = len(traces)
	}
	if workers == 0 {
		return nil, nil
	}
	b.log.Info("batch: starting map-matching",
		"run_id", runID, "traces", len(traces), "workers", workers)
	started := b.cfg.Clock.Now()

	chunks := partition(traces, workers)
	resultChunks := make([][]*Result, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	for w, chunk := range chunks {
		w, chunk := w, chunk
		g.Go(func() error {
			results, err := b.runChunk(ctx, chunk)
			if err != nil {
				return err
			}
			resultChunks[w] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*Result
	for _, rc := range resultChunks {
		out = append(out, rc...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TraceID < out[j].TraceID })

	succeeded := 0
	for _, r := range out {
		succeeded += r.Success
	}
	b.log.Info("batch: finished map-matching",
		"run_id", runID,
		"succeeded", succeeded,
		"failed", len(out)-succeeded,
		"elapsed", b.cfg.Clock.Since(started))
	return out, nil
}

// runChunk matches one chunk on a worker-private driver.
func (b *Batch) runChunk(ctx context.Context, chunk []trace.Raw) ([]*Result, error) {
	net := b.cfg.Network.Clone()
	router, err := b.cfg.NewRouter(net)
	if err != nil {
		return nil, err
	}
	if err := router.Prepare(); err != nil {
		return nil, err
	}
	driver, err := NewDriver(DriverConfig{
		Logger:       b.log,
		Clock:        b.cfg.Clock,
		Network:      net,
		Index:        b.cfg.Index,
		Router:       router,
		Params:       b.cfg.Params,
		IgnoreErrors: b.cfg.IgnoreErrors,
	})
	if err != nil {
		return nil, err
	}

	var results []*Result
	for _, raw := range chunk {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := driver.Match(ctx, raw.Pings)
		if err != nil {
			// Structural per-trace problem: report and move on.
			b.log.Warn("batch: trace rejected", "trace_id", raw.ID, "error", err)
			results = append(results, &Result{
				TraceID: raw.ID,
				State:   StateFailed,
				Errors:  []string{err.Error()},
			})
			metrics.TracesTotal.WithLabelValues(metrics.StatusSkipped).Inc()
			continue
		}
		observe(res)
		results = append(results, res)
	}
	return results, nil
}

func observe(res *Result) {
	switch {
	case res.Success == 1:
		metrics.TracesTotal.WithLabelValues(metrics.StatusMatched).Inc()
	case len(res.Links) == 0 && len(res.Errors) > 0:
		metrics.TracesTotal.WithLabelValues(metrics.StatusSkipped).Inc()
	default:
		metrics.TracesTotal.WithLabelValues(metrics.StatusFailed).Inc()
	}
	metrics.MatchQuality.Observe(res.MatchQuality)
	metrics.MatchDuration.Observe(res.MatchSeconds)
	metrics.WaypointsAdded.Observe(float64(res.WaypointsAdded))
}

// partition splits traces into contiguous chunks of ceil(len/n) traces,
// the last one possibly shorter, so it can return fewer than n chunks.
func partition(traces []trace.Raw, n int) [][]trace.Raw {
	chunks := make([][]trace.Raw, 0, n)
	size := (len(traces) + n - 1) / n
	for start := 0; start < len(traces); start += size {
		end := start + size
		if end > len(traces) {
			end = len(traces)
		}
		chunks = append(chunks, traces[start:end])
	}
	return chunks
}
