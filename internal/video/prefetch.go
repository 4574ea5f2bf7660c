package video

import (
	"sync"

	"pupil-tracker/internal/opencv/memory"

	"gocv.io/x/gocv"
)

// Reader is a sequential frame source.
type Reader interface {
	Read(dst *gocv.Mat) bool
	FrameCount() int
	Index() int
}

type decoded struct {
	mat   *gocv.Mat
	ok    bool
	index int
}

// Prefetcher decodes up to depth frames ahead of the consumer on a separate
// goroutine. Frames are delivered strictly in decode order, read failures
// included. The wrapped Reader must not be used until Close returns.
type Prefetcher struct {
	frames int
	index  int
	pool   *memory.Pool
	queue  chan decoded
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPrefetcher starts decoding src. When src declares no frame count the
// decoder stops after the first failed read.
func NewPrefetcher(src Reader, depth int) *Prefetcher {
	if depth < 1 {
		depth = 1
	}
	p := &Prefetcher{
		frames: src.FrameCount(),
		pool:   memory.NewPool(depth + 2),
		queue:  make(chan decoded, depth),
		done:   make(chan struct{}),
	}

	p.wg.Add(1)
	go p.decode(src)
	return p
}

func (p *Prefetcher) decode(src Reader) {
	defer p.wg.Done()
	defer close(p.queue)

	for n := 0; p.frames <= 0 || n < p.frames; n++ {
		mat := p.pool.Get()
		ok := src.Read(mat)
		select {
		case p.queue <- decoded{mat: mat, ok: ok, index: src.Index()}:
		case <-p.done:
			p.pool.Put(mat)
			return
		}
		if !ok && p.frames <= 0 {
			return
		}
	}
}

// Read copies the next decoded frame into dst. After the decoder has finished
// it reports false without advancing.
func (p *Prefetcher) Read(dst *gocv.Mat) bool {
	f, open := <-p.queue
	if !open {
		return false
	}
	p.index = f.index
	if f.ok {
		f.mat.CopyTo(dst)
	}
	p.pool.Put(f.mat)
	return f.ok
}

func (p *Prefetcher) FrameCount() int {
	return p.frames
}

func (p *Prefetcher) Index() int {
	return p.index
}

// Buffers reports how many frame buffers the decoder has allocated. It stays
// within depth+2 however long the video is.
func (p *Prefetcher) Buffers() int {
	return p.pool.Created()
}

// Close stops the decoder and releases buffered frames.
func (p *Prefetcher) Close() error {
	p.once.Do(func() {
		close(p.done)
		for f := range p.queue {
			p.pool.Put(f.mat)
		}
		p.wg.Wait()
		p.pool.Cleanup()
	})
	return nil
}
