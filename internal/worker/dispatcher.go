package worker

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// ErrDispatcherBusy reports a full intake queue; callers surface it as a
// retryable condition rather than waiting.
var ErrDispatcherBusy = errors.New("dispatcher queue is full")

type sessionQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher fans chat exchanges out to a bounded worker pool, round-robin
// across sessions so one busy session cannot starve the rest. It does not
// serialize jobs within a session: two concurrent sends to one session may
// interleave, which read-back tolerates by ordering on the message id.
type Dispatcher struct {
	pool     *jobChannelPool
	jobQueue chan Job

	mu        sync.Mutex
	queues    map[string]*sessionQueue
	ready     *list.List // round-robin queue of session ids
	positions map[string]*list.Element
}

type DispatcherConfig struct {
	MinWorkers        int
	MaxWorkers        int
	QueueSize         int
	WorkerIdleTimeout time.Duration
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	minWorkers := cfg.MinWorkers
	if minWorkers < 0 {
		minWorkers = 0
	}
	// At least one worker must be spawnable or acquire waits forever.
	maxWorkers := cfg.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = minWorkers
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	pool := newJobChannelPool(minWorkers, maxWorkers, cfg.WorkerIdleTimeout)

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 16
	}

	d := &Dispatcher{
		pool:      pool,
		jobQueue:  make(chan Job, queueSize),
		queues:    make(map[string]*sessionQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
	}

	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit queues one exchange for the session. It never blocks: a full queue
// returns ErrDispatcherBusy.
func (d *Dispatcher) Submit(sessionID string, run func()) error {
	job := Job{Type: Exchange, SessionID: sessionID, Run: run}
	select {
	case d.jobQueue <- job:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

func (d *Dispatcher) run() {
	for {
		if !d.dispatchOne() {
			job := <-d.jobQueue // nothing queued, wait for intake
			d.enqueueJob(job)
			continue
		}
		select {
		case job := <-d.jobQueue:
			d.enqueueJob(job)
		default:
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.SessionID]
	if q == nil {
		q = &sessionQueue{}
		d.queues[job.SessionID] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	elem := d.ready.PushBack(job.SessionID)
	d.positions[job.SessionID] = elem
}

// dispatchOne takes the session at the front of the round-robin queue and
// hands its oldest job to a worker.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}

	sessionID := elem.Value.(string)
	q := d.queues[sessionID]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, sessionID)
		delete(d.queues, sessionID)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	debugLog("[dispatcher] assign exchange for session %s", sessionID)
	workerChan <- job
	return true
}
