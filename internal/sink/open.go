package sink

import (
	"context"
	"errors"
	"log"

	"github.com/Zachdehooge/flood-dashboard/internal/config"
)

// Open builds a Publisher from the configured sinks. Unconfigured sinks are skipped.
// On error, destinations opened so far are closed.
func Open(ctx context.Context, cfg config.SinksConfig) (*Publisher, error) {
	var dests []Destination
	fail := func(err error) (*Publisher, error) {
		closeErr := NewPublisher(dests...).Close()
		return nil, errors.Join(err, closeErr)
	}

	if cfg.File.Dir != "" {
		f, err := NewFileOutput(cfg.File.Dir)
		if err != nil {
			return fail(err)
		}
		dests = append(dests, f)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		k, err := NewKafkaOutput(cfg.Kafka.Brokers)
		if err != nil {
			return fail(err)
		}
		dests = append(dests, k)
	}
	if cfg.AMQP.URI != "" {
		a, err := NewAMQPOutput(cfg.AMQP.URI, cfg.AMQP.Exchange)
		if err != nil {
			return fail(err)
		}
		dests = append(dests, a)
	}
	if cfg.Postgres.DSN != "" {
		p, err := NewPostgresOutput(ctx, cfg.Postgres.DSN, cfg.Postgres.Table)
		if err != nil {
			return fail(err)
		}
		dests = append(dests, p)
	}
	if cfg.S3.Bucket != "" {
		s, err := NewS3Output(ctx, cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.Region)
		if err != nil {
			return fail(err)
		}
		dests = append(dests, s)
	}

	log.Printf("[sink] %d destination(s) enabled", len(dests))
	return NewPublisher(dests...), nil
}
