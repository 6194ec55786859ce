package queue

import (
	"time"

	"github.com/hibiken/asynq"
	job "github.com/maheshrc27/postqueue/internal/jobs"
	"github.com/maheshrc27/postqueue/internal/service"
	"github.com/maheshrc27/postqueue/pkg/logger"
)

// Worker turns asynq tasks into publish and sweep calls.
type Worker struct {
	publisher service.PublishService
	processor *job.QueueProcessor
	log       *logger.Logger
	now       func() time.Time
}

func NewWorker(publisher service.PublishService, processor *job.QueueProcessor, log *logger.Logger) *Worker {
	return &Worker{
		publisher: publisher,
		processor: processor,
		log:       log.WithComponent("worker"),
		now:       time.Now,
	}
}

// Mux routes every task type the worker understands.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePublishPost, w.HandlePublishPostTask)
	mux.HandleFunc(TaskTypeProcessQueues, w.HandleProcessQueuesTask)
	return mux
}
