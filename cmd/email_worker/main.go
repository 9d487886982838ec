package main

import (
	"context"
	"errors"
	"os"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/anaqa-user-service/config"
	"github.com/oksasatya/anaqa-user-service/internal/lifecycle"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
	"github.com/oksasatya/anaqa-user-service/pkg/mailer"
)

const prefetch = 16

var (
	errConnClosed      = errors.New("amqp connection closed")
	errDeliveryStopped = errors.New("delivery channel closed")
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadFor(config.ScopeWorker)
	if err != nil {
		config.Report(nil, err)
		return lifecycle.ExitFailed
	}
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env, cfg.LogLevel)

	if !cfg.MailSendEnabled {
		logger.Info("MAIL_SEND_ENABLED=false; email worker disabled")
		return lifecycle.ExitOK
	}

	conn, ch, err := helpers.DialRabbit(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
	if err != nil {
		helpers.LogError(logger, "amqp dial", err, logrus.Fields{"queue": cfg.RabbitMQEmailQueue})
		return lifecycle.ExitFailed
	}
	closeAMQP := func(context.Context) error {
		_ = ch.Close()
		return conn.Close()
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		helpers.LogError(logger, "qos", err, nil)
		_ = closeAMQP(context.Background())
		return lifecycle.ExitFailed
	}
	msgs, err := ch.Consume(cfg.RabbitMQEmailQueue, "", false, false, false, false, nil)
	if err != nil {
		helpers.LogError(logger, "consume", err, nil)
		_ = closeAMQP(context.Background())
		return lifecycle.ExitFailed
	}

	o := lifecycle.New(nil, logger, lifecycle.Options{
		Timeout:    cfg.ShutdownTimeout,
		Production: cfg.IsProduction(),
	})
	o.Manage(lifecycle.Resource{Name: "rabbitmq", Close: closeAMQP})

	w := mailer.NewWorker(mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender), logger)
	consumed := make(chan struct{})
	o.Go("email delivery", func(ctx context.Context) error {
		defer close(consumed)
		w.Consume(ctx, msgs)
		return nil
	})

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	helpers.LogInfo(logger, "email worker listening", logrus.Fields{"queue": cfg.RabbitMQEmailQueue})
	return o.Run(context.Background(), func() error {
		select {
		case e, ok := <-closed:
			if ok && e != nil {
				return e
			}
			return errConnClosed
		case <-consumed:
			return errDeliveryStopped
		}
	})
}
