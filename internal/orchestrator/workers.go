package orchestrator

import (
	"sync"
	"time"

	"github.com/DavidCaelum/rubberband/internal/channelproc"
)

// startWorkers spins up one goroutine per channel, selected only in
// offline mode when channels > 1 and threading was requested. workerMu
// guards only wakeups, never DSP work; threadSet guards the worker
// set's lifecycle and is held only during construction, shutdown, and
// reset.
func (o *Orchestrator) startWorkers() {
	o.threadSet.Lock()
	defer o.threadSet.Unlock()

	if o.workersRun {
		return
	}
	o.workerShutdown = false
	o.dataAvailable = sync.NewCond(&o.workerMu)
	o.spaceAvailable = sync.NewCond(&o.workerMu)

	for c := range o.channels {
		c := c
		o.workerWG.Add(1)
		go o.workerLoop(c)
	}
	o.workersRun = true
}

// stopWorkers sets the shutdown flag, wakes every worker, and joins
// them. Shutdown is deterministic; there is no user-visible
// cancellation.
func (o *Orchestrator) stopWorkers() {
	o.threadSet.Lock()
	if !o.workersRun {
		o.threadSet.Unlock()
		return
	}
	o.workerMu.Lock()
	o.workerShutdown = true
	o.dataAvailable.Broadcast()
	o.workerMu.Unlock()
	o.threadSet.Unlock()

	o.workerWG.Wait()

	o.threadSet.Lock()
	o.workersRun = false
	o.threadSet.Unlock()
}

func (o *Orchestrator) workerLoop(c int) {
	defer o.workerWG.Done()
	proc := o.channels[c]

	for {
		o.workerMu.Lock()
		for !o.workerShutdown && !proc.ReadyToAnalyze() && !proc.Finished() {
			o.dataAvailable.Wait()
		}
		shouldExit := o.workerShutdown && !proc.ReadyToAnalyze()
		o.workerMu.Unlock()

		if shouldExit {
			return
		}

		for proc.ReadyToAnalyze() {
			inc := o.scheduledIncrement(o.chunkIndex[c])
			if err := o.analyzeChunk(c, proc, inc); err != nil {
				break
			}
			o.chunkIndex[c]++
		}

		o.workerMu.Lock()
		o.spaceAvailable.Signal()
		o.workerMu.Unlock()

		if proc.Finished() {
			return
		}
	}
}

// processOfflineThreaded writes input into each channel's inbuf,
// signalling dataAvailable after each round, and retries rounds that
// hit backpressure by waiting on spaceAvailable bounded at 500 ms. It
// gives up and reports ErrWouldBlock only after several bounded waits
// produce no further progress, matching the single-threaded path's
// no-forward-progress contract.
func (o *Orchestrator) processOfflineThreaded(input [][]float64, final bool) error {
	remaining := make([][]float64, len(o.channels))
	for c := range o.channels {
		if c < len(input) {
			remaining[c] = input[c]
		}
	}
	offsets := make([]int, len(o.channels))

	const maxStalls = 8
	stalls := 0

	for {
		progress := false
		for c, proc := range o.channels {
			if offsets[c] < len(remaining[c]) {
				n, err := proc.Write(remaining[c][offsets[c]:])
				if err != nil {
					continue
				}
				if n > 0 {
					offsets[c] += n
					o.channelTotalIn[c] += n
					progress = true
				}
			}
		}

		o.workerMu.Lock()
		o.dataAvailable.Broadcast()
		o.workerMu.Unlock()

		done := true
		for c := range o.channels {
			if offsets[c] < len(remaining[c]) {
				done = false
			}
		}
		if done {
			break
		}

		if progress {
			stalls = 0
			continue
		}

		o.workerMu.Lock()
		waitWithTimeout(o.spaceAvailable, &o.workerMu, spaceAvailableWait)
		o.workerMu.Unlock()

		stalls++
		if stalls >= maxStalls {
			if final {
				o.finalizeThreadedChannels()
			}
			return channelproc.ErrWouldBlock
		}
	}

	if final {
		o.finalizeThreadedChannels()
	}

	return nil
}

func (o *Orchestrator) finalizeThreadedChannels() {
	for c, proc := range o.channels {
		proc.SetFinalInputSize(o.channelTotalIn[c])
	}
	o.workerMu.Lock()
	o.dataAvailable.Broadcast()
	o.workerMu.Unlock()
	o.stopWorkers()
	o.mode = Finished
}

// waitWithTimeout wraps sync.Cond.Wait with a bound, since the stdlib
// condvar has no native timed wait: a timer goroutine reacquires mu and
// broadcasts after timeout, guaranteeing Wait returns within that bound
// even if the real wakeup (a worker signalling spaceAvailable) is
// missed.
func waitWithTimeout(c *sync.Cond, mu sync.Locker, timeout time.Duration) {
	timer := time.AfterFunc(timeout, func() {
		mu.Lock()
		c.Broadcast()
		mu.Unlock()
	})
	defer timer.Stop()
	c.Wait()
}
