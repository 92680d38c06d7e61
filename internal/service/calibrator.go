package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/loomlabs/loom/internal/domain"
)

const (
	// similarityBucketWidth discretizes semantic similarity for
	// calibration statistics. Bucket = similarity / width, with 1.0
	// folded into the top bucket.
	similarityBucketWidth = 0.2

	defaultCalibratorInterval = 5 * time.Minute
	defaultQueueSize          = 1024
	recomputeBatchSize        = 500
)

// SimilarityBucket maps a similarity in [0,1] to its discrete bucket.
func SimilarityBucket(sim float64) int {
	bucket := int(clamp01(sim) / similarityBucketWidth)
	maxBucket := int(1.0/similarityBucketWidth) - 1
	if bucket > maxBucket {
		bucket = maxBucket
	}
	return bucket
}

type bucketKey struct {
	Bucket int
	Domain string
}

type BucketStats struct {
	Observations int
	Successes    int
}

func (b BucketStats) SuccessRate() float64 {
	if b.Observations == 0 {
		return 0
	}
	return float64(b.Successes) / float64(b.Observations)
}

// CalibrationSnapshot is an immutable view of the per-bucket outcome
// statistics. The scorer reads whichever snapshot is published; the
// calibrator never mutates one in place.
type CalibrationSnapshot struct {
	stats    map[bucketKey]BucketStats
	LastSeq  int64
	Warnings int64
}

func EmptyCalibration() *CalibrationSnapshot {
	return &CalibrationSnapshot{stats: map[bucketKey]BucketStats{}}
}

func (s *CalibrationSnapshot) Lookup(bucket int, domain string) (BucketStats, bool) {
	stats, ok := s.stats[bucketKey{Bucket: bucket, Domain: domain}]
	return stats, ok
}

func (s *CalibrationSnapshot) Buckets() int { return len(s.stats) }

// fold returns a new snapshot with the signals applied. Invalid entries
// are skipped and counted; the fold itself never fails, so replaying the
// full log always reproduces the same statistics as incremental folding.
func (s *CalibrationSnapshot) fold(signals []domain.LearningSignal) *CalibrationSnapshot {
	next := &CalibrationSnapshot{
		stats:    make(map[bucketKey]BucketStats, len(s.stats)),
		LastSeq:  s.LastSeq,
		Warnings: s.Warnings,
	}
	for k, v := range s.stats {
		next.stats[k] = v
	}
	for i := range signals {
		sig := &signals[i]
		if sig.Seq > next.LastSeq {
			next.LastSeq = sig.Seq
		}
		if !sig.Valid() {
			next.Warnings++
			continue
		}
		key := bucketKey{Bucket: sig.SimilarityBucket, Domain: sig.Domain}
		stats := next.stats[key]
		stats.Observations++
		if sig.Success {
			stats.Successes++
		}
		next.stats[key] = stats
	}
	return next
}

// CalibratorService folds reported outcomes into the statistics the
// scorer's confidence term consults. It runs off the serving path:
// signals arrive through a buffered queue, recompute happens on a
// schedule, and each recompute publishes a fresh snapshot atomically.
type CalibratorService struct {
	outcomes domain.OutcomeStore
	logger   *zap.Logger

	interval time.Duration
	snapshot atomic.Pointer[CalibrationSnapshot]
	queue    chan domain.LearningSignal
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewCalibratorService(outcomes domain.OutcomeStore, logger *zap.Logger) *CalibratorService {
	s := &CalibratorService{
		outcomes: outcomes,
		logger:   logger,
		interval: defaultCalibratorInterval,
		queue:    make(chan domain.LearningSignal, defaultQueueSize),
		stopCh:   make(chan struct{}),
	}
	s.snapshot.Store(EmptyCalibration())
	return s
}

func (s *CalibratorService) SetInterval(d time.Duration) {
	s.interval = d
}

// Snapshot returns the most recently published statistics. Callers never
// lock against the calibrator's write path.
func (s *CalibratorService) Snapshot() *CalibrationSnapshot {
	return s.snapshot.Load()
}

// Enqueue hands a learning signal to the calibrator without blocking the
// caller. On overflow the signal is dropped with a warning; the outcome
// itself is already persisted, so a later full recompute still sees it.
func (s *CalibratorService) Enqueue(sig domain.LearningSignal) {
	select {
	case s.queue <- sig:
	default:
		s.logger.Warn("calibration queue full, dropping signal",
			zap.String("match_id", sig.MatchID.String()))
	}
}

// Record appends a signal to the authoritative log.
func (s *CalibratorService) Record(ctx context.Context, sig *domain.LearningSignal) error {
	return s.outcomes.AppendSignal(ctx, sig)
}

// Recompute folds the unseen tail of the log into the current statistics
// and publishes the result. Folding is idempotent: recomputing from an
// empty snapshot reproduces the same statistics as any sequence of
// incremental folds over the same log.
func (s *CalibratorService) Recompute(ctx context.Context) error {
	return s.recomputeFrom(ctx, s.snapshot.Load())
}

// RecomputeFull rebuilds the statistics from the start of the log. Used
// at boot and after suspected corruption; the log is authoritative and
// the snapshot is only a cache.
func (s *CalibratorService) RecomputeFull(ctx context.Context) error {
	return s.recomputeFrom(ctx, EmptyCalibration())
}

func (s *CalibratorService) recomputeFrom(ctx context.Context, base *CalibrationSnapshot) error {
	snap := base
	for {
		signals, err := s.outcomes.ListSignalsFrom(ctx, snap.LastSeq, recomputeBatchSize)
		if err != nil {
			return err
		}
		if len(signals) == 0 {
			break
		}
		snap = snap.fold(signals)
	}
	if snap.Warnings > base.Warnings {
		s.logger.Warn("skipped corrupt calibration log entries",
			zap.Int64("skipped", snap.Warnings-base.Warnings))
	}
	s.snapshot.Store(snap)
	return nil
}

// Start runs the calibrator loop in a background goroutine: drain queued
// signals into the log, then recompute and publish.
func (s *CalibratorService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("calibrator started", zap.Duration("interval", s.interval))

		for {
			select {
			case sig := <-s.queue:
				s.persistSignal(sig)
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := s.Recompute(ctx); err != nil {
					s.logger.Error("calibration recompute failed", zap.Error(err))
				}
				cancel()
			case <-s.stopCh:
				s.logger.Info("calibrator stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the calibrator loop.
func (s *CalibratorService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *CalibratorService) persistSignal(sig domain.LearningSignal) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Record(ctx, &sig); err != nil {
		s.logger.Warn("failed to append learning signal",
			zap.String("match_id", sig.MatchID.String()),
			zap.Error(err))
	}
}
