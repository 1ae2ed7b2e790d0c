package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ladder/internal/back"
	"ladder/internal/config"
	"ladder/internal/lifecycle"
	"ladder/internal/obslog"
	"ladder/internal/standings"
	"ladder/internal/web"
)

const startTimeout = 30 * time.Second

func serve(conf *config.Config) error {
	log := obslog.S()

	algo, err := conf.Rating.Algorithm()
	if err != nil {
		return fmt.Errorf("invalid rating configuration: %w", err)
	}
	log.Infow("rating games", "system", algo.Name())

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	opts := []back.Option{back.WithLogger(log.Named("back"))}
	var mirror *standings.Mirror
	if conf.Redis.Enabled {
		mirror, err = standings.Dial(ctx, conf.Redis.Addr, conf.Redis.Password, conf.Redis.DB, conf.Redis.Key)
		if err != nil {
			return err
		}
		defer mirror.Close()
		opts = append(opts, back.WithStandings(mirror))
	}

	b, err := back.New("sqlite3", conf.Database.DSN, algo, opts...)
	if err != nil {
		return err
	}
	defer b.Close()

	var reader web.StandingsReader
	if mirror != nil {
		reader = mirror
	}

	server := web.NewServer(b, conf, reader, web.Config{
		Addr:                 conf.HTTP.Addr,
		ReadTimeout:          conf.HTTP.ReadTimeout,
		WriteTimeout:         conf.HTTP.WriteTimeout,
		IdleTimeout:          conf.HTTP.IdleTimeout,
		SubmissionsPerMinute: conf.Submissions.PerMinute,
		SubmissionsBurst:     conf.Submissions.Burst,
		LocalesDir:           conf.HTTP.Locales,
	}, log.Named("web"))

	var consumer *lifecycle.Consumer
	if conf.Kafka.Enabled {
		consumer, err = lifecycle.NewConsumer(lifecycle.Config{
			Brokers: conf.Kafka.Brokers,
			Topic:   conf.Kafka.Topic,
			GroupID: conf.Kafka.GroupID,
		}, b, log.Named("lifecycle"))
		if err != nil {
			return err
		}

		if err := consumer.Start(ctx); err != nil {
			log.Warnw("lifecycle consumer not ready yet, still trying in the background", "error", err)
		}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go b.Run(&wg, done)
	go server.Serve(&wg, done)

	signaled := make(chan os.Signal, 1)
	signal.Notify(signaled, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signaled
	log.Infow("received signal", "signal", sig.String())

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			log.Warnw("unable to stop lifecycle consumer", "error", err)
		}
	}

	close(done)
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
