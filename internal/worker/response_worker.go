package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aimstudio/aims-backend/internal/config"
	"github.com/aimstudio/aims-backend/internal/model"
	"github.com/aimstudio/aims-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ResponseBatchSize    = 50
	ResponseBatchTimeout = 2 * time.Second
	ResponsePollTimeout  = 1 * time.Second
)

// ResponseWorker drains the persistence queue that the play service pushes
// finalized responses onto. Playback never waits on PostgreSQL; this worker
// is the only thing standing between the queue and the table.
type ResponseWorker struct {
	responseRepo *repository.ResponseRepository
	quizRepo     *repository.QuizRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

func NewResponseWorker(
	responseRepo *repository.ResponseRepository,
	quizRepo *repository.QuizRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ResponseWorker {
	return &ResponseWorker{
		responseRepo: responseRepo,
		quizRepo:     quizRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "response_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResponseWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResponseWorker started")

	batch := make([]*model.QuizResponse, 0, ResponseBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ResponseBatchSize || time.Since(lastFlush) >= ResponseBatchTimeout) {

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
			item, err := w.rdb.BLPop(ctx, ResponsePollTimeout, config.WorkerKey.PersistResponsesQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var resp model.QuizResponse
			if err := json.Unmarshal([]byte(item[1]), &resp); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &resp)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert wrapper with fallback + requeue
// ----------------------------------------------------------------

func (w *ResponseWorker) flushSafe(ctx context.Context, batch []*model.QuizResponse) {
	if len(batch) == 0 {
		return
	}

	if err := w.responseRepo.BulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk response insert failed, using fallback")

		for _, resp := range batch {
			if err := w.responseRepo.Insert(ctx, resp); err != nil {
				w.log.Error().Err(err).Msg("single insert failed — requeueing")
				raw, _ := json.Marshal(resp)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResponsesQueue, raw)
			} else {
				w.bumpCounter(ctx, resp.QuizID, 1)
			}
		}
		return
	}

	// Successful bulk insert → bump the per-quiz denormalized counters.
	counts := make(map[uuid.UUID]int, len(batch))
	for _, resp := range batch {
		counts[resp.QuizID]++
	}
	for quizID, by := range counts {
		w.bumpCounter(ctx, quizID, by)
	}

	w.log.Debug().Int("count", len(batch)).Msg("Batch persisted")
}

func (w *ResponseWorker) bumpCounter(ctx context.Context, quizID uuid.UUID, by int) {
	if err := w.quizRepo.IncrementResponses(ctx, quizID, by); err != nil {
		w.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Counter bump failed")
	}
}
