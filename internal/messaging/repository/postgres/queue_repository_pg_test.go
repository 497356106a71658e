package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftpress/messaging/internal/messaging/domain"
)

var queueRowColumns = []string{
	"id", "template_key", "recipient_type", "recipient_id", "recipient_email", "recipient_phone",
	"channel", "subject", "body", "inbox_title", "inbox_action_url", "inbox_action_label", "inbox_action_icon",
	"variables", "metadata", "status", "priority", "scheduled_for", "retry_count", "max_retries",
	"error_message", "provider_message_id", "sent_at", "failed_at", "created_at", "updated_at",
}

func setupQueueTest(t *testing.T) (domain.QueueRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPgQueueRepository(mockPool, logger), mockPool
}

func queueRow(mockPool pgxmock.PgxPoolIface, id string, status domain.MessageStatus, retryCount, maxRetries int) *pgxmock.Rows {
	now := time.Now().UTC()
	email := "amira@example.com"
	return mockPool.NewRows(queueRowColumns).AddRow(
		id, "order_shipped", "customer", nil, &email, nil,
		"email", nil, "<p>body</p>", nil, nil, nil, nil,
		[]byte(`{}`), []byte(`{}`), string(status), 1, now, retryCount, maxRetries,
		nil, nil, nil, nil, now, now,
	)
}

func TestPgQueueRepository_Enqueue(t *testing.T) {
	repo, mockPool := setupQueueTest(t)

	// An email-only send carries no recipient id: the column is nullable
	// and the insert must go through with the pointer left nil.
	msg := domain.NewQueuedMessage("order_shipped", "customer", domain.ChannelEmail, domain.PriorityHigh, time.Time{})
	msg.Body = "<p>body</p>"
	require.Nil(t, msg.RecipientID)

	mockPool.ExpectExec(`INSERT INTO queued_messages`).
		WithArgs(
			msg.ID, "order_shipped", "customer", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			"email", pgxmock.AnyArg(), "<p>body</p>", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), "pending", 2, pgxmock.AnyArg(), 0, domain.DefaultMaxRetries,
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	enqueued, err := repo.Enqueue(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, enqueued.ID)
	assert.Equal(t, domain.StatusPending, enqueued.Status)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgQueueRepository_ClaimDue(t *testing.T) {
	t.Run("claims pending rows ordered by priority then age", func(t *testing.T) {
		repo, mockPool := setupQueueTest(t)
		dueTime := time.Now().UTC()

		rows := queueRow(mockPool, "m1", domain.StatusProcessing, 0, 3)
		mockPool.ExpectQuery(`WITH due_message_ids AS \(\s*SELECT id\s*FROM queued_messages\s*WHERE status = \$1 AND scheduled_for <= \$2\s*ORDER BY priority DESC, created_at ASC\s*LIMIT \$3\s*FOR UPDATE SKIP LOCKED`).
			WithArgs("pending", dueTime, 5, "processing", pgxmock.AnyArg()).
			WillReturnRows(rows)

		claimed, err := repo.ClaimDue(context.Background(), dueTime, 5)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, "m1", claimed[0].ID)
		assert.Equal(t, domain.ChannelEmail, claimed[0].Channel)
		assert.Equal(t, domain.StatusProcessing, claimed[0].Status)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("empty claim returns ErrNoDueMessages", func(t *testing.T) {
		repo, mockPool := setupQueueTest(t)
		dueTime := time.Now().UTC()

		mockPool.ExpectQuery(`WITH due_message_ids AS`).
			WithArgs("pending", dueTime, 5, "processing", pgxmock.AnyArg()).
			WillReturnRows(mockPool.NewRows(queueRowColumns))

		_, err := repo.ClaimDue(context.Background(), dueTime, 5)
		assert.ErrorIs(t, err, domain.ErrNoDueMessages)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgQueueRepository_MarkSent(t *testing.T) {
	t.Run("updates a processing row", func(t *testing.T) {
		repo, mockPool := setupQueueTest(t)
		providerID := "msg_123"

		mockPool.ExpectExec(`UPDATE queued_messages\s*SET status = \$2, provider_message_id = \$3, sent_at = \$4, updated_at = \$4\s*WHERE id = \$1 AND status = \$5`).
			WithArgs("m1", "sent", &providerID, pgxmock.AnyArg(), "processing").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkSent(context.Background(), "m1", &providerID))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("row no longer processing", func(t *testing.T) {
		repo, mockPool := setupQueueTest(t)

		mockPool.ExpectExec(`UPDATE queued_messages`).
			WithArgs("m1", "sent", pgxmock.AnyArg(), pgxmock.AnyArg(), "processing").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkSent(context.Background(), "m1", nil)
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgQueueRepository_MarkFailed(t *testing.T) {
	t.Run("retryable with budget reverts to pending with backoff", func(t *testing.T) {
		repo, mockPool := setupQueueTest(t)

		mockPool.ExpectQuery(`SELECT .* FROM queued_messages WHERE id = \$1`).
			WithArgs("m1").
			WillReturnRows(queueRow(mockPool, "m1", domain.StatusProcessing, 0, 3))
		mockPool.ExpectExec(`UPDATE queued_messages\s*SET status = \$2, retry_count = \$3, scheduled_for = \$4, error_message = \$5, updated_at = \$6\s*WHERE id = \$1`).
			WithArgs("m1", "pending", 1, pgxmock.AnyArg(), "timeout", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkFailed(context.Background(), "m1", "timeout", true))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("exhausted budget fails terminally", func(t *testing.T) {
		repo, mockPool := setupQueueTest(t)

		mockPool.ExpectQuery(`SELECT .* FROM queued_messages WHERE id = \$1`).
			WithArgs("m1").
			WillReturnRows(queueRow(mockPool, "m1", domain.StatusProcessing, 2, 3))
		mockPool.ExpectExec(`UPDATE queued_messages\s*SET status = \$2, retry_count = \$3, error_message = \$4, failed_at = \$5, updated_at = \$5\s*WHERE id = \$1`).
			WithArgs("m1", "failed", 3, "timeout", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkFailed(context.Background(), "m1", "timeout", true))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("non-retryable fails terminally with budget remaining", func(t *testing.T) {
		repo, mockPool := setupQueueTest(t)

		mockPool.ExpectQuery(`SELECT .* FROM queued_messages WHERE id = \$1`).
			WithArgs("m1").
			WillReturnRows(queueRow(mockPool, "m1", domain.StatusProcessing, 0, 3))
		mockPool.ExpectExec(`UPDATE queued_messages`).
			WithArgs("m1", "failed", 1, "destination is not in E.164 format", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkFailed(context.Background(), "m1", "destination is not in E.164 format", false))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("terminal statuses are immutable", func(t *testing.T) {
		repo, mockPool := setupQueueTest(t)

		mockPool.ExpectQuery(`SELECT .* FROM queued_messages WHERE id = \$1`).
			WithArgs("m1").
			WillReturnRows(queueRow(mockPool, "m1", domain.StatusFailed, 3, 3))

		// No update statement may follow the read.
		require.NoError(t, repo.MarkFailed(context.Background(), "m1", "late failure", true))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		repo, mockPool := setupQueueTest(t)

		mockPool.ExpectQuery(`SELECT .* FROM queued_messages WHERE id = \$1`).
			WithArgs("missing").
			WillReturnError(errors.New("no rows in result set"))

		err := repo.MarkFailed(context.Background(), "missing", "whatever", true)
		assert.Error(t, err)
	})
}

func TestPgQueueRepository_Stats(t *testing.T) {
	repo, mockPool := setupQueueTest(t)

	rows := mockPool.NewRows([]string{"status", "count"}).
		AddRow("pending", int64(4)).
		AddRow("processing", int64(1)).
		AddRow("sent", int64(120)).
		AddRow("failed", int64(2))
	mockPool.ExpectQuery(`SELECT status, COUNT\(\*\) FROM queued_messages GROUP BY status`).
		WillReturnRows(rows)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(127), stats.Total)
	assert.Equal(t, int64(4), stats.Pending)
	assert.Equal(t, int64(1), stats.Processing)
	assert.Equal(t, int64(120), stats.Sent)
	assert.Equal(t, int64(2), stats.Failed)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
