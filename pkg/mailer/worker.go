package mailer

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/anaqa-user-service/pkg/mailer/templates"
)

// Outcome is what the consumer does with a delivery.
type Outcome int

const (
	Ack     Outcome = iota
	Reject          // malformed or unrenderable, drop it
	Requeue         // delivery failed, try again later
)

// Worker renders queued email jobs and hands them to a Sender.
type Worker struct {
	Sender Sender
	Log    logrus.FieldLogger
}

func NewWorker(s Sender, log logrus.FieldLogger) *Worker {
	return &Worker{Sender: s, Log: log.WithField("component", "email_worker")}
}

// Handle processes one message body.
func (w *Worker) Handle(ctx context.Context, body []byte) Outcome {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.Log.WithError(err).Warn("bad message")
		return Reject
	}
	job.Normalize()
	if err := job.Validate(); err != nil {
		w.Log.WithError(err).Warn("invalid email job")
		return Reject
	}
	log := w.Log.WithField("template", job.Template)

	subject, text, html := job.Subject, job.Text, job.HTML
	if job.Template != "" {
		var err error
		if subject, text, html, err = templates.Render(job.Template, job.Data); err != nil {
			log.WithError(err).Error("render failed")
			return Reject
		}
	}

	if err := w.Sender.Send(ctx, job.To, subject, text, html); err != nil {
		log.WithError(err).Error("send failed")
		return Requeue
	}
	log.Debug("email sent")
	return Ack
}

// Consume acknowledges deliveries according to Handle until msgs is closed or
// ctx is done.
func (w *Worker) Consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var err error
			switch w.Handle(ctx, msg.Body) {
			case Ack:
				err = msg.Ack(false)
			case Reject:
				err = msg.Nack(false, false)
			case Requeue:
				err = msg.Nack(false, true)
			}
			if err != nil {
				w.Log.WithError(err).Error("acknowledge failed")
			}
		}
	}
}
