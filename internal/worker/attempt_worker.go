package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/klasio/lms-backend/internal/config"
	"github.com/klasio/lms-backend/internal/model"
)

const (
	AttemptBatchSize    = 50
	AttemptBatchTimeout = 2 * time.Second
	AttemptPollTimeout  = 1 * time.Second
)

// AttemptWorker drains the persist queue and bulk-inserts per-question answer
// rows. The attempt header is already durable when a job is queued; this
// worker only fills in the breakdown teachers see in the review view.
type AttemptWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewAttemptWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AttemptWorker {
	return &AttemptWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "attempt_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *AttemptWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AttemptWorker started")

	batch := make([]*model.AttemptPersistJob, 0, AttemptBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= AttemptBatchSize || time.Since(lastFlush) >= AttemptBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, AttemptPollTimeout, config.WorkerKey.PersistAttemptsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var job model.AttemptPersistJob
			if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &job)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert wrapper
// ----------------------------------------------------------------

func (w *AttemptWorker) flushSafe(ctx context.Context, batch []*model.AttemptPersistJob) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkInsertAnswers(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk answer insert failed, using fallback")

		for _, job := range batch {
			if err := w.persistSingle(ctx, job); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed, requeueing")
				raw, _ := json.Marshal(job)
				w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw)
			}
		}
	}
}

// ----------------------------------------------------------------
// BULK PostgreSQL INSERT using UNNEST
// ----------------------------------------------------------------

func (w *AttemptWorker) bulkInsertAnswers(ctx context.Context, batch []*model.AttemptPersistJob) error {
	var (
		attemptIDs []uuid.UUID
		questions  []int64
		selections []*int
	)

	for _, job := range batch {
		for _, a := range job.Answers {
			attemptIDs = append(attemptIDs, job.AttemptID)
			questions = append(questions, a.QuestionID)
			selections = append(selections, a.SelectedOption)
		}
	}
	if len(attemptIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO attempt_answers (attempt_id, question_id, selected_option)
		SELECT u.attempt_id, u.question_id, u.selected_option
		FROM UNNEST(
			$1::uuid[],
			$2::bigint[],
			$3::int[]
		) AS u (attempt_id, question_id, selected_option)
		ON CONFLICT (attempt_id, question_id) DO NOTHING
	`

	_, err := w.pool.Exec(ctx, query, attemptIDs, questions, selections)
	return err
}

// ----------------------------------------------------------------
// FALLBACK single insert
// ----------------------------------------------------------------

func (w *AttemptWorker) persistSingle(ctx context.Context, job *model.AttemptPersistJob) error {
	for _, a := range job.Answers {
		_, err := w.pool.Exec(ctx,
			`INSERT INTO attempt_answers (attempt_id, question_id, selected_option)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (attempt_id, question_id) DO NOTHING`,
			job.AttemptID, a.QuestionID, a.SelectedOption,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
