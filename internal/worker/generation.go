package worker

import (
	"context"
	"encoding/json"

	"coupon-system/internal/model"
	"coupon-system/pkg/apperrors"
	"coupon-system/pkg/queue"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// BatchGenerator runs one queued generation job
type BatchGenerator interface {
	GenerateBatch(ctx context.Context, msg model.GenerationMessage) error
}

type Config struct {
	Topic       string
	Group       string
	Concurrency int
}

// GenerationWorker consumes the generation topic with a fixed number of
// consumer slots, each processing one message at a time.
type GenerationWorker struct {
	consumer  queue.Consumer
	generator BatchGenerator
	cfg       Config
	log       zerolog.Logger
}

func NewGenerationWorker(consumer queue.Consumer, generator BatchGenerator, cfg Config, log zerolog.Logger) *GenerationWorker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &GenerationWorker{
		consumer:  consumer,
		generator: generator,
		cfg:       cfg,
		log:       log.With().Str("component", "generation-worker").Logger(),
	}
}

// Run blocks until ctx is cancelled or a consumer slot fails
func (w *GenerationWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for slot := 0; slot < w.cfg.Concurrency; slot++ {
		slot := slot
		g.Go(func() error {
			w.log.Info().Int("slot", slot).Str("topic", w.cfg.Topic).Msg("consumer slot started")
			return w.consumer.Consume(ctx, w.cfg.Topic, w.cfg.Group, w.Handle)
		})
	}
	return g.Wait()
}

// Handle processes one generation message. Returning an error requeues it;
// malformed messages and jobs that can never succeed are acknowledged.
func (w *GenerationWorker) Handle(ctx context.Context, msg queue.Message) error {
	var m model.GenerationMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		w.log.Error().Err(err).Str("payload", string(msg.Value)).Msg("dropping malformed generation message")
		return nil
	}
	if m.JobID.IsZero() || m.CouponBookID.IsZero() {
		w.log.Error().Str("payload", string(msg.Value)).Msg("dropping generation message without job or book")
		return nil
	}

	log := w.log.With().
		Str("job_id", m.JobID.Hex()).
		Str("book_id", m.CouponBookID.Hex()).
		Int("attempt", msg.Attempt).
		Logger()
	log.Info().Int("quantity", m.Quantity).Msg("processing generation job")

	err := w.generator.GenerateBatch(log.WithContext(ctx), m)
	if err == nil {
		return nil
	}
	if kind := apperrors.KindOf(err); kind != apperrors.KindInternal {
		log.Error().Err(err).Str("kind", kind.String()).Msg("generation job rejected")
		return nil
	}
	log.Warn().Err(err).Msg("generation job failed, will retry")
	return err
}
