package worker

// JobType discriminates queue entries.
type JobType int

const (
	// Exchange runs one chat exchange end to end on a pooled worker.
	Exchange JobType = iota
	// Stop retires the receiving worker.
	Stop
)

// Job is one unit of work keyed by the session that submitted it.
type Job struct {
	Type      JobType
	SessionID string
	Run       func()
}

type Worker struct {
	pool       *jobChannelPool
	jobChannel chan Job
}

func newWorker(pool *jobChannelPool) *Worker {
	return &Worker{
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for job := range w.jobChannel {
			if job.Type == Stop {
				w.pool.retire(w.jobChannel)
				return
			}
			if job.Run != nil {
				job.Run()
			}
			w.pool.Release(w.jobChannel)
		}
	}()
}
