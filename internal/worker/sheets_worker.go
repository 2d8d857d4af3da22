package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hallbook/internal/events"
	"hallbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskUpsert = "upsert"
	TaskDelete = "delete"
)

// RetryPolicy: экспоненциальная пауза между попытками записи в таблицу.
// Касается только зеркала; запись бронирований никогда не повторяется.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxRetries == 0 {
		r.MaxRetries = 5
	}
	if r.InitialDelay == 0 {
		r.InitialDelay = 2 * time.Second
	}
	if r.MaxDelay == 0 {
		r.MaxDelay = time.Minute
	}
	if r.BackoffFactor == 0 {
		r.BackoffFactor = 2
	}
	return r
}

// NextDelay returns the pause before attempt (1-based), capped by MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := r.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * factor)
		if r.MaxDelay > 0 && delay >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	return delay
}

// SheetTask describes a unit of work for Sheets.
type SheetTask struct {
	Type      string          `json:"type"`
	BookingID int64           `json:"booking_id"`
	Booking   *models.Booking `json:"booking,omitempty"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SheetsClient is the mirror the worker writes to.
type SheetsClient interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	DeleteBookingRow(ctx context.Context, bookingID int64) error
}

// SheetsWorker mirrors booking events into Google Sheets. Tasks go through
// a Redis list when a client is configured, otherwise an in-memory queue.
// Failures are retried with backoff and then parked in a dead-letter list.
type SheetsWorker struct {
	sheets        SheetsClient
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan SheetTask
	redisQueueKey string
	deadLetterKey string
	pollTimeout   time.Duration
	logger        *zerolog.Logger
}

// NewSheetsWorker builds a worker; zero RetryPolicy fields get defaults.
func NewSheetsWorker(sheets SheetsClient, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SheetsWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &SheetsWorker{
		sheets:        sheets,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan SheetTask, models.WorkerQueueSize),
		redisQueueKey: "sheets:queue",
		deadLetterKey: "sheets:deadletter",
		pollTimeout:   time.Second,
		logger:        logger,
	}
}

// HandleEvent turns booking events into sheet tasks; meant for EventBus.Subscribe.
func (w *SheetsWorker) HandleEvent(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	task := SheetTask{BookingID: payload.BookingID}
	switch event.Type {
	case events.EventBookingCreated:
		booking, err := payload.Booking()
		if err != nil {
			return fmt.Errorf("decode booking: %w", err)
		}
		task.Type = TaskUpsert
		task.Booking = booking
	case events.EventBookingCancelled:
		task.Type = TaskDelete
	default:
		return nil
	}

	return w.EnqueueTask(context.Background(), task)
}

// EnqueueTask schedules task via redis or the in-memory queue.
func (w *SheetsWorker) EnqueueTask(ctx context.Context, task SheetTask) error {
	if task.Type == "" {
		return errors.New("task type is required")
	}
	if task.BookingID == 0 && task.Booking != nil {
		task.BookingID = task.Booking.ID
	}
	if task.BookingID == 0 {
		return errors.New("booking id is required")
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	if w.redis != nil {
		err := w.pushList(ctx, w.redisQueueKey, task)
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Int64("booking_id", task.BookingID).Msg("sheets_worker: redis push failed, fallback to memory queue")
	}

	select {
	case w.queue <- task:
		return nil
	default:
		return fmt.Errorf("sheets queue full, task for booking %d dropped", task.BookingID)
	}
}

// Start launches main loop; stops when ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sheets_worker: started")
	defer w.logger.Info().Msg("sheets_worker: stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if w.redis != nil {
			if t, ok := w.tryRedis(ctx); ok {
				w.processTask(ctx, &t)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			w.processTask(ctx, &t)
		}
	}
}

func (w *SheetsWorker) tryLocalQueue() (SheetTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return SheetTask{}, false
	}
}

func (w *SheetsWorker) tryRedis(ctx context.Context) (SheetTask, bool) {
	res, err := w.redis.BRPop(ctx, w.pollTimeout, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return SheetTask{}, false
		}
		w.logger.Error().Err(err).Msg("sheets_worker: redis BRPOP error")
		// не крутим цикл вхолостую, пока Redis недоступен
		select {
		case <-ctx.Done():
		case <-time.After(w.pollTimeout):
		}
		return SheetTask{}, false
	}
	if len(res) != 2 {
		return SheetTask{}, false
	}
	var task SheetTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("sheets_worker: decode redis task")
		return SheetTask{}, false
	}
	return task, true
}

func (w *SheetsWorker) processTask(ctx context.Context, task *SheetTask) {
	if err := w.handleSheetTask(ctx, task); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}
	w.logger.Debug().Str("type", task.Type).Int64("booking_id", task.BookingID).Msg("sheets_worker: task done")
}

func (w *SheetsWorker) handleSheetTask(ctx context.Context, task *SheetTask) error {
	switch task.Type {
	case TaskUpsert:
		if task.Booking == nil {
			return errors.New("booking payload missing")
		}
		return w.sheets.UpsertBooking(ctx, task.Booking)
	case TaskDelete:
		return w.sheets.DeleteBookingRow(ctx, task.BookingID)
	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}

func (w *SheetsWorker) retryOrFail(ctx context.Context, task *SheetTask, cause error) {
	task.Attempt++
	task.LastError = cause.Error()

	if task.Attempt >= w.retryPolicy.MaxRetries {
		w.logger.Error().Err(cause).Int64("booking_id", task.BookingID).Int("attempt", task.Attempt).Msg("sheets_worker: task failed")
		w.pushDeadLetter(ctx, task)
		return
	}

	delay := w.retryPolicy.NextDelay(task.Attempt)
	w.logger.Warn().Err(cause).Int64("booking_id", task.BookingID).Dur("retry_in", delay).Msg("sheets_worker: task retry scheduled")

	retry := *task
	time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.EnqueueTask(ctx, retry); err != nil {
			w.logger.Error().Err(err).Int64("booking_id", retry.BookingID).Msg("sheets_worker: requeue failed")
		}
	})
}

func (w *SheetsWorker) pushList(ctx context.Context, key string, task SheetTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

func (w *SheetsWorker) pushDeadLetter(ctx context.Context, task *SheetTask) {
	if w.redis == nil {
		return
	}
	if err := w.pushList(ctx, w.deadLetterKey, *task); err != nil {
		w.logger.Error().Err(err).Int64("booking_id", task.BookingID).Msg("sheets_worker: deadletter push failed")
	}
}
