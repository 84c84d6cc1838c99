package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Forken21/botsat/internal/tle"
	"github.com/Forken21/botsat/internal/transform"
)

// SatelliteLook is one satellite's look angle and sub-satellite point.
type SatelliteLook struct {
	Name     string
	Look     transform.LookAngle
	SubPoint transform.GeodeticPoint
	EpochAge time.Duration // at - epoch
}

// lookJob is a unit of work for the worker pool.
type lookJob struct {
	es   *tle.ElementSet
	obs  transform.Observer
	at   time.Time
	gmst float64 // precomputed GMST for at
}

// lookResult is the output of a single satellite evaluation.
type lookResult struct {
	look SatelliteLook
	err  error
	name string
}

// WorkerPool manages a fixed number of goroutines for parallel look-angle queries.
type WorkerPool struct {
	workers int
	prop    *Propagator
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
// prop supplies the horizon advisory and error accounting.
func NewWorkerPool(workers int, prop *Propagator, logger *slog.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		prop:    prop,
		logger:  logger,
	}
}

// LookBatch evaluates every element set from obs at the same instant.
// Failed satellites are logged and skipped. Results are in completion order.
// Returns the looks plus success and error counts.
func (wp *WorkerPool) LookBatch(ctx context.Context, sets []*tle.ElementSet, obs transform.Observer, at time.Time) ([]SatelliteLook, int, int) {
	if len(sets) == 0 {
		return nil, 0, 0
	}

	// Same instant for every satellite: one GMST.
	gmst := transform.GMST(at)

	jobs := make(chan lookJob, wp.workers*2)
	results := make(chan lookResult, wp.workers*2)

	var wg sync.WaitGroup
	for range wp.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := wp.lookSingle(job)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, es := range sets {
			select {
			case jobs <- lookJob{es: es, obs: obs, at: at, gmst: gmst}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	looks := make([]SatelliteLook, 0, len(sets))
	var successCount, errorCount int

	for result := range results {
		if result.err != nil {
			errorCount++
			wp.logger.Warn("look angle failed",
				"satellite", result.name,
				"error", result.err,
			)
			continue
		}
		successCount++
		looks = append(looks, result.look)
	}

	return looks, successCount, errorCount
}

func (wp *WorkerPool) lookSingle(job lookJob) lookResult {
	var (
		sv  transform.StateVector
		err error
	)
	if wp.prop != nil {
		sv, err = wp.prop.Propagate(job.es, job.at)
	} else {
		sv, err = Propagate(job.es, job.at)
	}
	if err != nil {
		return lookResult{name: job.es.Name, err: err}
	}

	la := transform.ToLookAngleWithGMST(sv, job.obs, job.gmst)
	ecef := transform.TEMEToECEFWithGMST(sv, job.gmst)

	return lookResult{
		name: job.es.Name,
		look: SatelliteLook{
			Name:     job.es.Name,
			Look:     la,
			SubPoint: transform.ECEFToGeodetic(ecef.Position),
			EpochAge: job.at.Sub(job.es.Epoch),
		},
	}
}
