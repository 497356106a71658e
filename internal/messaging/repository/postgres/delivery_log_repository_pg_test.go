package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftpress/messaging/internal/messaging/domain"
)

func setupDeliveryLogTest(t *testing.T) (domain.DeliveryLogRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPgDeliveryLogRepository(mockPool, logger), mockPool
}

func TestPgDeliveryLogRepository_ArchiveResolved(t *testing.T) {
	repo, mockPool := setupDeliveryLogTest(t)
	cutoff := time.Now().UTC().Add(-7 * 24 * time.Hour)

	mockPool.ExpectExec(`WITH moved AS \(\s*DELETE FROM queued_messages\s*WHERE status IN \(\$1, \$2\) AND updated_at < \$3`).
		WithArgs("sent", "failed", cutoff, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 42))

	archived, err := repo.ArchiveResolved(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), archived)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgDeliveryLogRepository_PurgeOlderThan(t *testing.T) {
	repo, mockPool := setupDeliveryLogTest(t)
	cutoff := time.Now().UTC().Add(-90 * 24 * time.Hour)

	mockPool.ExpectExec(`DELETE FROM message_delivery_log WHERE archived_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	purged, err := repo.PurgeOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), purged)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
