package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/charlesng35/authflow/internal/app"
	"github.com/charlesng35/authflow/pkg/logger"
	"github.com/charlesng35/authflow/pkg/mail"
)

// mailworker drains the queue filled by the amqp transport and delivers over SMTP.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("authflow-mailworker", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := app.LoadConfigPath(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("mailworker")

	smtpSettings := cfg.Email.SMTPSettings()
	if !smtpSettings.Enabled {
		return errors.New("email.smtp.enabled must be true for the mail worker")
	}
	smtp, err := mail.NewSMTPMailer(smtpSettings)
	if err != nil {
		return fmt.Errorf("initialise smtp mailer: %w", err)
	}

	consumer, err := mail.DialConsumer(cfg.Email.AMQPSettings(), "authflow-mailworker")
	if err != nil {
		return err
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			log.Warn("broker shutdown", zap.Error(err))
		}
	}()

	log.Info("mail worker consuming", zap.String("queue", cfg.Email.AMQP.Queue))
	if err := mail.NewRelay(smtp, log).Run(ctx, consumer.Deliveries()); err != nil {
		return fmt.Errorf("relay: %w", err)
	}

	log.Info("mail worker stopped")
	return nil
}
