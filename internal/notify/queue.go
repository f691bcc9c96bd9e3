package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"CheckinKiosk/internal/model"
	pkgerrors "CheckinKiosk/pkg/errors"
)

// Job is one guardian notification to deliver.
type Job struct {
	ID        string
	Name      string
	Emails    []string
	Action    model.Action
	Timestamp time.Time
}

// Sender delivers one guardian notification. *Mailer is the production
// implementation.
type Sender interface {
	SendCheckin(ctx context.Context, name string, emails []string, action model.Action, ts time.Time) error
}

// Queue hands notification jobs from the scan pipeline to a worker
// goroutine over a bounded channel. Enqueueing never blocks: when the
// queue is saturated the job is dropped with a log line, because the
// kiosk keeps scanning no matter what the mail server does.
type Queue struct {
	jobs   chan Job
	mailer Sender
	log    *zap.Logger
	wg     sync.WaitGroup
}

func NewQueue(mailer Sender, size int, log *zap.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{
		jobs:   make(chan Job, size),
		mailer: mailer,
		log:    log,
	}
}

// Start launches the delivery worker. It drains until ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-q.jobs:
				q.deliver(ctx, job)
			}
		}
	}()
}

// Wait blocks until the worker has stopped.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Notify implements the engine's notifier contract.
func (q *Queue) Notify(name string, emails []string, action model.Action, ts time.Time) {
	job := Job{
		ID:        uuid.NewString(),
		Name:      name,
		Emails:    emails,
		Action:    action,
		Timestamp: ts,
	}
	select {
	case q.jobs <- job:
	default:
		q.log.Warn(pkgerrors.QueueSaturated.Message,
			zap.String("job_id", job.ID),
			zap.String("name", name),
		)
	}
}

func (q *Queue) deliver(ctx context.Context, job Job) {
	jobCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if err := q.mailer.SendCheckin(jobCtx, job.Name, job.Emails, job.Action, job.Timestamp); err != nil {
		q.log.Warn("Guardian notification failed",
			zap.String("job_id", job.ID),
			zap.String("name", job.Name),
			zap.Error(err),
		)
		return
	}
	q.log.Info("Guardian notification sent",
		zap.String("job_id", job.ID),
		zap.String("name", job.Name),
		zap.String("action", string(job.Action)),
	)
}
