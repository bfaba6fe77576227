package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arena-sports/backend/internal/models"
	"github.com/arena-sports/backend/pkg/queue"
)

// EmailLogger records delivery outcomes; implemented by EmailLogRepository.
type EmailLogger interface {
	Record(ctx context.Context, payload queue.EmailPayload, status, errMsg string) error
}

// EmailProcessor drains the email queue: render is already done by the
// dispatcher, so a job is send plus audit log.
type EmailProcessor struct {
	queue  *queue.Queue
	mailer Mailer
	logs   EmailLogger
	logger *zap.Logger
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(q *queue.Queue, mailer Mailer, logs EmailLogger, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{queue: q, mailer: mailer, logs: logs, logger: logger}
}

// Process executes one email job. The audit log is written for both outcomes;
// a log write failure never masks a send failure.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	sendErr := p.mailer.Send(payload.RecipientEmail, payload.Subject, payload.BodyText, payload.BodyHTML)

	status := models.EmailLogStatusSent
	errMsg := ""
	if sendErr != nil {
		status = models.EmailLogStatusFailed
		errMsg = sendErr.Error()
	}
	if p.logs != nil {
		if logErr := p.logs.Record(ctx, payload, status, errMsg); logErr != nil {
			p.logger.Error("email log write failed", zap.Error(logErr), zap.String("job_id", job.ID))
		}
	}

	if sendErr != nil {
		return fmt.Errorf("send to %s: %w", payload.RecipientEmail, sendErr)
	}
	p.logger.Info("email sent",
		zap.String("job_id", job.ID),
		zap.String("email_type", payload.EmailType),
		zap.String("recipient", payload.RecipientEmail),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
