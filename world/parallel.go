package world

import (
	"runtime"
	"sync"

	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/vecmath"
)

// defaultParallelThreshold is the minimum agent count to use the worker
// pool. Below this, single-threaded is faster due to goroutine overhead.
const defaultParallelThreshold = 256

// intent is the read-phase result for one agent, applied after the barrier.
type intent struct {
	Acc   vecmath.Vec3
	State systems.State
}

// workerScratch holds per-worker reusable buffers.
type workerScratch struct {
	Neighbors []systems.Neighbor
}

// workChunk is a range of views for one worker.
type workChunk struct {
	start, end int
}

// parallelState holds the tick snapshot and the worker pool that computes
// intents from it. Workers only read views and the grid and only write
// their own range of intents, so the result does not depend on scheduling.
type parallelState struct {
	views   []systems.AgentView
	points  []systems.Point
	intents []intent

	scratches  []workerScratch
	numWorkers int
	enabled    bool
	threshold  int

	workChan chan workChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newParallelState(workers int, enabled bool, threshold int) *parallelState {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if threshold <= 0 {
		threshold = defaultParallelThreshold
	}
	scratches := make([]workerScratch, workers)
	for i := range scratches {
		scratches[i].Neighbors = make([]systems.Neighbor, 0, 64)
	}
	return &parallelState{
		numWorkers: workers,
		enabled:    enabled && workers > 1,
		threshold:  threshold,
		scratches:  scratches,
		views:      make([]systems.AgentView, 0, 512),
		points:     make([]systems.Point, 0, 512),
		intents:    make([]intent, 0, 512),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers(w *World) {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(w, i)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *parallelState) worker(w *World, workerID int) {
	defer p.wg.Done()
	scratch := &p.scratches[workerID]

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			w.computeChunk(chunk.start, chunk.end, scratch)
			p.doneChan <- struct{}{}
		}
	}
}

// computeIntents runs the read phase, on the pool when the population is
// large enough. It returns once every intent is written.
func (w *World) computeIntents() {
	p := w.parallel
	n := len(p.views)
	if cap(p.intents) < n {
		p.intents = make([]intent, n)
	}
	p.intents = p.intents[:n]
	if n == 0 {
		return
	}

	if !p.enabled || n < p.threshold {
		w.computeChunk(0, n, &p.scratches[0])
		return
	}
	w.computeParallel(n)
}

// computeParallel dispatches chunks to the pool and waits for all of them.
func (w *World) computeParallel(n int) {
	p := w.parallel
	if !p.running {
		p.startWorkers(w)
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		p.workChan <- workChunk{start: start, end: end}
		dispatched++
	}

	for range dispatched {
		<-p.doneChan
	}
}
