package scanner

import "sync"

// pool is a fixed-size worker pool shared by every probe phase. Each
// phase submits all its work and then waits; wait doubles as the phase
// barrier.
type pool struct {
	jobs chan func()
	wg   sync.WaitGroup
}

func newPool(workers int) *pool {
	p := &pool{jobs: make(chan func())}
	for i := 0; i < workers; i++ {
		go func() {
			for job := range p.jobs {
				job()
				p.wg.Done()
			}
		}()
	}
	return p
}

// submit queues one job. Blocks while every worker is busy, which is the
// pool's only form of backpressure.
func (p *pool) submit(job func()) {
	p.wg.Add(1)
	p.jobs <- job
}

// wait blocks until every submitted job has finished. Stragglers are
// never cancelled: one slow probe delays the next phase for all targets.
func (p *pool) wait() {
	p.wg.Wait()
}

// close releases the workers. The pool must be drained first.
func (p *pool) close() {
	close(p.jobs)
}
