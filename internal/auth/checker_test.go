package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain will run goleak after all tests have been run in the package
// to detect any goroutine leaks
func TestMain(m *testing.M) {
	m.Run()
	goleak.VerifyTestMain(m,
		// INFO: https://github.com/go-redis/redis/issues/1029
		goleak.IgnoreTopFunction(
			"github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper",
		),
	)
}

func TestSessionChecker_UserID(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	checker := NewSessionChecker(time.Hour, rdb)
	require.NotNil(t, checker)

	token := gofakeit.UUID()
	userID := gofakeit.UUID()
	mock.ExpectGet(sessionKeyPrefix + token).
		SetVal(fmt.Sprintf("%s||%d", userID, time.Now().Unix()))

	gotUserID, err := checker.UserID(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, gotUserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionChecker_UserID_Expired(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	checker := NewSessionChecker(time.Hour, rdb)

	token := gofakeit.UUID()
	createdAt := time.Now().Add(-2 * time.Hour)
	mock.ExpectGet(sessionKeyPrefix + token).
		SetVal(fmt.Sprintf("%s||%d", gofakeit.UUID(), createdAt.Unix()))

	_, err := checker.UserID(context.Background(), token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionChecker_UserID_UnknownToken(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	checker := NewSessionChecker(time.Hour, rdb)

	token := gofakeit.UUID()
	mock.ExpectGet(sessionKeyPrefix + token).RedisNil()

	_, err := checker.UserID(context.Background(), token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionChecker_UserID_MalformedSession(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	checker := NewSessionChecker(time.Hour, rdb)

	token := gofakeit.UUID()
	mock.ExpectGet(sessionKeyPrefix + token).SetVal("no-separator-here")

	_, err := checker.UserID(context.Background(), token)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionChecker_Invalidate(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	checker := NewSessionChecker(time.Hour, rdb)

	token := gofakeit.UUID()
	mock.ExpectDel(sessionKeyPrefix + token).SetVal(1)

	require.NoError(t, checker.Invalidate(context.Background(), token))
	assert.NoError(t, mock.ExpectationsWereMet())
}
