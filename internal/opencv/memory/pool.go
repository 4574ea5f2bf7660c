package memory

import (
	"sync"

	"gocv.io/x/gocv"
)

// Pool recycles frame buffers between a decoder and its consumer.
type Pool struct {
	mats    []*gocv.Mat
	maxSize int
	mu      sync.Mutex
	created int
}

func NewPool(maxSize int) *Pool {
	return &Pool{
		mats:    make([]*gocv.Mat, 0, maxSize),
		maxSize: maxSize,
	}
}

// Get returns a pooled buffer or a new empty one.
func (p *Pool) Get() *gocv.Mat {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.mats) == 0 {
		mat := gocv.NewMat()
		p.created++
		return &mat
	}

	mat := p.mats[len(p.mats)-1]
	p.mats = p.mats[:len(p.mats)-1]
	return mat
}

// Put returns a buffer to the pool. A full pool closes it instead.
func (p *Pool) Put(mat *gocv.Mat) {
	if mat == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.mats) >= p.maxSize {
		mat.Close()
		return
	}

	p.mats = append(p.mats, mat)
}

// Created counts the buffers allocated by Get.
func (p *Pool) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// Cleanup closes every pooled buffer and returns how many there were.
func (p *Pool) Cleanup() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := len(p.mats)
	for _, mat := range p.mats {
		mat.Close()
	}
	p.mats = p.mats[:0]
	return count
}
