package detector

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sentinelstack/latency-sentinel/internal/config"
	"github.com/sentinelstack/latency-sentinel/internal/metrics"
	"github.com/sentinelstack/latency-sentinel/internal/models"
)

// Detector owns the sliding latency window and the current outlier model.
// It classifies each successful probe sample as normal or anomalous.
//
// Lifecycle: construct, feed samples through Observe, discard with the
// process. State never persists across restarts; a fresh Detector always
// starts cold.
type Detector struct {
	logger *slog.Logger

	mu            sync.Mutex
	window        *Window
	avail         *availabilityCounter
	forest        *Forest
	threshold     float64
	warm          bool
	sinceRetrain  int
	retrains      int
	lastFit       time.Duration
	minTrainSize  int
	contamination float64
	fixedCut      float64
	retrainEvery  int
	trees         int
	subsample     int
	seed          int64
	retrainBudget time.Duration
}

// New constructs a Detector from validated configuration.
func New(cfg config.DetectorConfig, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		logger:        logger,
		window:        NewWindow(cfg.WindowSize),
		avail:         newAvailabilityCounter(cfg.AvailabilityWindow),
		minTrainSize:  cfg.MinTrainSize,
		contamination: cfg.Contamination,
		fixedCut:      cfg.Threshold,
		retrainEvery:  cfg.RetrainEvery,
		trees:         cfg.Trees,
		subsample:     cfg.Subsample,
		seed:          cfg.Seed,
		retrainBudget: cfg.RetrainBudget,
	}
}

// Observe ingests one probe sample. Successful samples enter the window and,
// once warm, produce a Verdict. Failed samples only move the availability
// counter. The second return is false when no verdict was produced (cold
// start, failed probe, or a fit that had to be skipped).
func (d *Detector) Observe(sample models.Sample) (models.Verdict, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !sample.OK() {
		d.avail.record(false)
		return models.Verdict{}, false
	}
	d.avail.record(true)

	d.window.Append(sample.LatencyMS())
	if d.window.Len() < d.minTrainSize {
		return models.Verdict{}, false
	}
	if !d.warm {
		d.warm = true
		d.logger.Info("detector warm, classification enabled",
			slog.Int("window", d.window.Len()))
	}

	d.sinceRetrain++
	if d.forest == nil || d.sinceRetrain >= d.retrainEvery {
		d.refit()
	}
	if d.forest == nil {
		// Fit failed and no previous model exists; skip this cycle.
		return models.Verdict{}, false
	}

	score := d.forest.Score(sample.LatencyMS())
	return models.Verdict{
		Sample:    sample,
		Score:     score,
		Anomalous: score > d.threshold,
		Threshold: d.threshold,
	}, true
}

// refit rebuilds the forest from the full window. If the previous fit blew
// the retrain budget, the rebuild is skipped so the probe cadence is never
// starved; the existing model keeps serving until a cheaper cycle.
func (d *Detector) refit() {
	if d.forest != nil && d.retrainBudget > 0 && d.lastFit > d.retrainBudget {
		d.logger.Warn("skipping retrain, previous fit exceeded budget",
			slog.Duration("last_fit", d.lastFit),
			slog.Duration("budget", d.retrainBudget))
		d.lastFit = 0
		return
	}

	start := time.Now()
	forest, err := FitForest(d.window.Values(), ForestOptions{
		Trees:     d.trees,
		Subsample: d.subsample,
		Seed:      d.seed,
	})
	if err != nil {
		d.logger.Warn("model fit failed, keeping previous model", slog.Any("error", err))
		return
	}
	d.lastFit = time.Since(start)
	d.forest = forest
	d.threshold = d.deriveThreshold(forest)
	d.sinceRetrain = 0
	d.retrains++
	metrics.IncModelRetrain()
}

// deriveThreshold returns the score cut for the freshly fitted model: the
// explicit configured threshold when set, otherwise the (1 - contamination)
// quantile of the training scores. Classification is strict score > cut, so
// a zero-variance window, where every score ties, yields no anomalies.
func (d *Detector) deriveThreshold(forest *Forest) float64 {
	if d.fixedCut > 0 {
		return d.fixedCut
	}

	scores := forest.Scores(d.window.Values())
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	k := int(d.contamination * float64(len(scores)))
	if k < 1 {
		k = 1
	}
	if k >= len(scores) {
		k = len(scores) - 1
	}
	return scores[k]
}

// Tune applies hot-reloaded detection tunables. Zero threshold reverts to the
// contamination-derived cut on the next retrain.
func (d *Detector) Tune(contamination, threshold float64, retrainEvery int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if contamination > 0 && contamination <= 0.5 {
		d.contamination = contamination
	}
	if threshold >= 0 {
		d.fixedCut = threshold
	}
	if retrainEvery > 0 {
		d.retrainEvery = retrainEvery
	}
	// Force a refit on the next sample so the new cut takes effect promptly.
	d.sinceRetrain = d.retrainEvery
}

// ErrorRate reports the probe failure fraction over the availability window.
func (d *Detector) ErrorRate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.avail.errorRate()
}

// WindowLen reports the current number of samples in the window.
func (d *Detector) WindowLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.window.Len()
}

// Warm reports whether the cold-start phase has completed.
func (d *Detector) Warm() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.warm
}

// Retrains reports how many times the model has been rebuilt.
func (d *Detector) Retrains() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.retrains
}
