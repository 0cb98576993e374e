package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coupon-system/internal/codegen"
	"coupon-system/internal/metrics"
	"coupon-system/internal/model"
	"coupon-system/pkg/apperrors"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

// generation attempts per batch when random codes collide with stored ones
const maxGenerateAttempts = 3

// Publisher enqueues background generation work
type Publisher interface {
	Publish(ctx context.Context, topic string, key, payload []byte) error
}

type PoolConfig struct {
	// MaxSyncGenerator is the largest quantity generated on the request path
	MaxSyncGenerator int
	BatchSize        int
	GenerationTopic  string
}

// PoolManager owns coupon books and the coupons generated or uploaded into them
type PoolManager struct {
	stores    Stores
	publisher Publisher
	cfg       PoolConfig
	log       zerolog.Logger
	now       func() time.Time
}

func NewPoolManager(stores Stores, publisher Publisher, cfg PoolConfig, log zerolog.Logger) *PoolManager {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &PoolManager{
		stores:    stores,
		publisher: publisher,
		cfg:       cfg,
		log:       log.With().Str("component", "pool").Logger(),
		now:       time.Now,
	}
}

// CreateBook validates the window and stores a new book with defaults applied
func (p *PoolManager) CreateBook(ctx context.Context, req *model.CreateCouponBookRequest) (book *model.CouponBook, err error) {
	ctx, done := startOp(ctx, "pool.create_book")
	defer func() { done(err) }()

	if !req.EndDate.After(req.StartDate) {
		return nil, apperrors.ErrInvalidDateRange
	}

	now := p.now()
	book = &model.CouponBook{
		ID:                       primitive.NewObjectID(),
		Name:                     req.Name,
		Description:              req.Description,
		StartDate:                req.StartDate,
		EndDate:                  req.EndDate,
		IsActive:                 true,
		MaxRedemptionsPerUser:    1,
		MaxCodesPerUser:          1,
		AllowMultipleRedemptions: req.AllowMultipleRedemptions,
		CodePattern:              req.CodePattern,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if req.IsActive != nil {
		book.IsActive = *req.IsActive
	}
	if req.MaxRedemptionsPerUser != nil {
		book.MaxRedemptionsPerUser = *req.MaxRedemptionsPerUser
	}
	if req.MaxCodesPerUser != nil {
		book.MaxCodesPerUser = *req.MaxCodesPerUser
	}

	if err := p.stores.Books.Create(ctx, book); err != nil {
		return nil, err
	}
	p.log.Info().Str("book_id", book.ID.Hex()).Str("name", book.Name).Msg("coupon book created")
	return book, nil
}

func (p *PoolManager) GetBook(ctx context.Context, id primitive.ObjectID) (*model.CouponBook, error) {
	return p.stores.Books.FindByID(ctx, id)
}

// DeleteBook soft deletes a book. Its coupons stay in place but every
// operation that loads the book now fails with not found.
func (p *PoolManager) DeleteBook(ctx context.Context, id primitive.ObjectID) (err error) {
	ctx, done := startOp(ctx, "pool.delete_book")
	defer func() { done(err) }()

	return p.stores.Books.SoftDelete(ctx, id, p.now())
}

func (p *PoolManager) RestoreBook(ctx context.Context, id primitive.ObjectID) (book *model.CouponBook, err error) {
	ctx, done := startOp(ctx, "pool.restore_book")
	defer func() { done(err) }()

	if err := p.stores.Books.Restore(ctx, id, p.now()); err != nil {
		return nil, err
	}
	return p.stores.Books.FindByID(ctx, id)
}

func (p *PoolManager) GetJob(ctx context.Context, id primitive.ObjectID) (*model.GenerationJob, error) {
	return p.stores.Jobs.FindByID(ctx, id)
}

// Generate produces quantity codes inline when it fits under the synchronous
// threshold and queues a background job otherwise.
func (p *PoolManager) Generate(ctx context.Context, bookID primitive.ObjectID, quantity int) (*model.GenerationResult, error) {
	if quantity <= 0 {
		return nil, apperrors.ErrInvalidQuantity
	}
	if quantity <= p.cfg.MaxSyncGenerator {
		return p.GenerateSynchronous(ctx, bookID, quantity)
	}
	return p.EnqueueAsynchronous(ctx, bookID, quantity, p.cfg.BatchSize)
}

// GenerateSynchronous inserts quantity generated codes and bumps the book's
// total in a single transaction.
func (p *PoolManager) GenerateSynchronous(ctx context.Context, bookID primitive.ObjectID, quantity int) (res *model.GenerationResult, err error) {
	ctx, done := startOp(ctx, "pool.generate_sync",
		attribute.String("coupon_book_id", bookID.Hex()),
		attribute.Int("quantity", quantity))
	defer func() { done(err) }()

	if quantity <= 0 {
		return nil, apperrors.ErrInvalidQuantity
	}

	var total int64
	err = p.withCollisionRetry(func() error {
		return p.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
			book, err := p.stores.Books.FindByID(ctx, bookID)
			if err != nil {
				return err
			}
			if err := ValidateForGeneration(book, p.now()); err != nil {
				return err
			}
			codes, err := generateCodes(book.CodePattern, quantity)
			if err != nil {
				return err
			}
			if err := p.insertBatch(ctx, book.ID, codes); err != nil {
				return err
			}
			total = book.TotalCodes + int64(quantity)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.CodesGenerated.WithLabelValues("sync").Add(float64(quantity))
	p.log.Info().Str("book_id", bookID.Hex()).Int("quantity", quantity).Msg("codes generated")

	return &model.GenerationResult{
		CouponBookID:   bookID,
		GeneratedCodes: quantity,
		TotalCodes:     total,
		Status:         "completed",
	}, nil
}

// EnqueueAsynchronous records a generation job and publishes it to the
// generation topic. No transaction is opened on the request path.
func (p *PoolManager) EnqueueAsynchronous(ctx context.Context, bookID primitive.ObjectID, quantity, batchSize int) (res *model.GenerationResult, err error) {
	ctx, done := startOp(ctx, "pool.enqueue_async",
		attribute.String("coupon_book_id", bookID.Hex()),
		attribute.Int("quantity", quantity))
	defer func() { done(err) }()

	if quantity <= 0 {
		return nil, apperrors.ErrInvalidQuantity
	}
	if batchSize <= 0 {
		batchSize = p.cfg.BatchSize
	}

	book, err := p.stores.Books.FindByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if err := ValidateForGeneration(book, p.now()); err != nil {
		return nil, err
	}

	now := p.now()
	job := &model.GenerationJob{
		ID:           primitive.NewObjectID(),
		CouponBookID: bookID,
		Quantity:     quantity,
		BatchSize:    batchSize,
		Status:       model.JobPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.stores.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(model.GenerationMessage{
		JobID:        job.ID,
		CouponBookID: bookID,
		Quantity:     quantity,
		BatchSize:    batchSize,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "encode generation message")
	}

	if err := p.publisher.Publish(ctx, p.cfg.GenerationTopic, []byte(bookID.Hex()), payload); err != nil {
		if serr := p.stores.Jobs.SetStatus(ctx, job.ID, model.JobFailed, err.Error(), p.now()); serr != nil {
			p.log.Error().Err(serr).Str("job_id", job.ID.Hex()).Msg("failed to mark job failed")
		}
		return nil, err
	}

	p.log.Info().Str("book_id", bookID.Hex()).Str("job_id", job.ID.Hex()).Int("quantity", quantity).Msg("generation job queued")

	jobID := job.ID
	return &model.GenerationResult{
		CouponBookID: bookID,
		JobID:        &jobID,
		TotalCodes:   book.TotalCodes,
		Status:       "processing",
		Message:      fmt.Sprintf("generating %d codes in the background", quantity),
	}, nil
}

// GenerateBatch runs a queued job. Each chunk of at most BatchSize codes is
// inserted, counted and checkpointed on the job in its own transaction, so a
// redelivered message resumes from the last committed chunk and a completed
// job is a no-op.
func (p *PoolManager) GenerateBatch(ctx context.Context, msg model.GenerationMessage) (err error) {
	ctx, done := startOp(ctx, "pool.generate_batch",
		attribute.String("job_id", msg.JobID.Hex()),
		attribute.String("coupon_book_id", msg.CouponBookID.Hex()))
	defer func() { done(err) }()

	job, err := p.stores.Jobs.FindByID(ctx, msg.JobID)
	if err != nil {
		return err
	}
	if job.Status == model.JobCompleted || job.Status == model.JobFailed {
		p.log.Info().Str("job_id", job.ID.Hex()).Str("status", string(job.Status)).Msg("job already finished, skipping")
		return nil
	}

	batchSize := job.BatchSize
	if batchSize <= 0 {
		batchSize = p.cfg.BatchSize
	}
	log := p.log.With().Str("job_id", job.ID.Hex()).Str("book_id", job.CouponBookID.Hex()).Logger()

	for job.Remaining() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := min(job.Remaining(), batchSize)
		err := p.withCollisionRetry(func() error {
			return p.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
				book, err := p.stores.Books.FindByID(ctx, job.CouponBookID)
				if err != nil {
					return err
				}
				if err := ValidateForGeneration(book, p.now()); err != nil {
					return err
				}
				codes, err := generateCodes(book.CodePattern, n)
				if err != nil {
					return err
				}
				if err := p.insertBatch(ctx, book.ID, codes); err != nil {
					return err
				}
				return p.stores.Jobs.AdvanceProgress(ctx, job.ID, job.Generated, n, p.now())
			})
		})
		if errors.Is(err, apperrors.ErrJobProgressConflict) {
			// another consumer is running this job; the chunk was rolled back
			log.Warn().Int("generated", job.Generated).Msg("job progress moved concurrently, leaving it to the other consumer")
			return nil
		}
		if err != nil {
			if apperrors.KindOf(err) != apperrors.KindInternal {
				// the book can no longer accept codes; retrying will not help
				if serr := p.stores.Jobs.SetStatus(ctx, job.ID, model.JobFailed, err.Error(), p.now()); serr != nil {
					log.Error().Err(serr).Msg("failed to mark job failed")
				}
			}
			log.Error().Err(err).Int("generated", job.Generated).Msg("batch failed")
			return err
		}

		job.Generated += n
		metrics.CodesGenerated.WithLabelValues("batch").Add(float64(n))
		log.Debug().Int("generated", job.Generated).Int("quantity", job.Quantity).Msg("batch committed")
	}

	if err := p.stores.Jobs.SetStatus(ctx, job.ID, model.JobCompleted, "", p.now()); err != nil {
		return err
	}
	log.Info().Int("quantity", job.Quantity).Msg("generation job completed")
	return nil
}

// UploadExplicit stores caller-supplied codes. Uniqueness is enforced by the
// store: one duplicate fails the whole batch.
func (p *PoolManager) UploadExplicit(ctx context.Context, bookID primitive.ObjectID, codes []string) (res *model.UploadResult, err error) {
	ctx, done := startOp(ctx, "pool.upload",
		attribute.String("coupon_book_id", bookID.Hex()),
		attribute.Int("quantity", len(codes)))
	defer func() { done(err) }()

	if len(codes) == 0 {
		return nil, apperrors.ErrNoCodes
	}

	var total int64
	err = p.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		book, err := p.stores.Books.FindByID(ctx, bookID)
		if err != nil {
			return err
		}
		if err := ValidateForGeneration(book, p.now()); err != nil {
			return err
		}
		if err := p.insertBatch(ctx, book.ID, codes); err != nil {
			return err
		}
		total = book.TotalCodes + int64(len(codes))
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CodesGenerated.WithLabelValues("upload").Add(float64(len(codes)))
	p.log.Info().Str("book_id", bookID.Hex()).Int("quantity", len(codes)).Msg("codes uploaded")

	return &model.UploadResult{
		CouponBookID:  bookID,
		UploadedCodes: len(codes),
		TotalCodes:    total,
		Status:        "completed",
	}, nil
}

// insertBatch writes the coupons and increments total_codes by the same amount.
// It must run inside a transaction.
func (p *PoolManager) insertBatch(ctx context.Context, bookID primitive.ObjectID, codes []string) error {
	now := p.now()
	coupons := make([]*model.Coupon, len(codes))
	for i, code := range codes {
		coupons[i] = &model.Coupon{
			ID:           primitive.NewObjectID(),
			CouponBookID: bookID,
			Code:         code,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	if err := p.stores.Coupons.InsertMany(ctx, coupons); err != nil {
		return err
	}
	return p.stores.Books.IncrementTotalCodes(ctx, bookID, int64(len(codes)), now)
}

// withCollisionRetry reruns fn when freshly generated codes clash with stored ones
func (p *PoolManager) withCollisionRetry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, apperrors.ErrDuplicateCode) {
			return err
		}
		p.log.Warn().Int("attempt", attempt).Msg("generated code collided with an existing code, retrying")
	}
	return err
}

func generateCodes(pattern string, n int) ([]string, error) {
	codes, err := codegen.GenerateBatch(pattern, n)
	if errors.Is(err, codegen.ErrSpaceExhausted) {
		return nil, apperrors.ErrPatternExhausted
	}
	return codes, err
}
