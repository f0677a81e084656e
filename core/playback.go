package engine

import (
	"sync"
	"time"

	"github.com/voxboard/voxboard-core/core/audio"
)

// schedulerEpsilon is the minimum lead time given to a chunk scheduled
// against a cursor that has fallen behind the clock.
const schedulerEpsilon = 10 * time.Millisecond

type scheduledChunk struct {
	samples    []int16
	sampleRate int
	startAt    time.Time
}

// playbackScheduler converts downlink PCM chunks into non-overlapping output
// buffers against a monotonic cursor on the output clock. Chunks arriving in
// bursts faster than real time are pushed out back-to-back with no gap or
// overlap. The scheduler is independent of turn boundaries: it keeps draining
// until its queue is empty even after a turn is finalized.
type playbackScheduler struct {
	mu     sync.Mutex
	cursor time.Time
	queue  []scheduledChunk

	signal  chan struct{}
	closeCh chan struct{}
	done    chan struct{}

	closeOnce sync.Once

	// sink receives each chunk when its start time arrives.
	sink func(samples []int16, sampleRate int)
	// onDrained fires whenever the queue runs empty.
	onDrained func()

	now func() time.Time
}

func newPlaybackScheduler(sink func(samples []int16, sampleRate int)) *playbackScheduler {
	if sink == nil {
		sink = func([]int16, int) {}
	}

	return &playbackScheduler{
		signal:    make(chan struct{}, 1),
		closeCh:   make(chan struct{}),
		done:      make(chan struct{}),
		sink:      sink,
		onDrained: func() {},
		now:       time.Now,
	}
}

// Schedule places one chunk on the output clock and returns its start time.
// Start times are non-decreasing and consecutive chunks never overlap.
func (p *playbackScheduler) Schedule(samples []int16, sampleRate int) time.Time {
	if sampleRate <= 0 {
		sampleRate = audio.PlaybackSampleRate
	}
	duration := time.Duration(len(samples)) * time.Second / time.Duration(sampleRate)

	p.mu.Lock()
	startAt := p.now().Add(schedulerEpsilon)
	if p.cursor.After(startAt) {
		startAt = p.cursor
	}
	p.cursor = startAt.Add(duration)
	p.queue = append(p.queue, scheduledChunk{samples: samples, sampleRate: sampleRate, startAt: startAt})
	p.mu.Unlock()

	p.signalUpdate()
	return startAt
}

// Pending reports whether any audio is queued or the cursor is still in the
// future, i.e. the model is audibly speaking.
func (p *playbackScheduler) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) > 0 || p.cursor.After(p.now())
}

// Flush drops all queued audio without playing it. The cursor is left where
// it is so later chunks still schedule after anything already sent out.
func (p *playbackScheduler) Flush() {
	p.mu.Lock()
	p.queue = nil
	p.mu.Unlock()
	p.signalUpdate()
}

func (p *playbackScheduler) Start() {
	go p.drain()
}

func (p *playbackScheduler) Close() {
	p.closeOnce.Do(func() {
		close(p.closeCh)
	})
	<-p.done
}

// drain is the single writer of everything past the queue: it sleeps until
// each chunk's start time and hands it to the sink in schedule order.
func (p *playbackScheduler) drain() {
	defer close(p.done)

	for {
		chunk, ok := p.nextChunk()
		if !ok {
			select {
			case <-p.closeCh:
				return
			case <-p.signal:
				continue
			}
		}

		if wait := chunk.startAt.Sub(p.now()); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-p.closeCh:
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		p.sink(chunk.samples, chunk.sampleRate)

		p.mu.Lock()
		drained := len(p.queue) == 0
		p.mu.Unlock()
		if drained {
			p.onDrained()
		}
	}
}

func (p *playbackScheduler) nextChunk() (scheduledChunk, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return scheduledChunk{}, false
	}
	chunk := p.queue[0]
	p.queue = p.queue[1:]
	return chunk, true
}

func (p *playbackScheduler) signalUpdate() {
	select {
	case p.signal <- struct{}{}:
	default:
	}
}
