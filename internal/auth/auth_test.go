package auth

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scoutpluse/scoutsync/internal/bus"
	"github.com/scoutpluse/scoutsync/internal/errs"
	"github.com/scoutpluse/scoutsync/internal/limiter"
	"github.com/scoutpluse/scoutsync/internal/model"
	"github.com/scoutpluse/scoutsync/internal/repository/sqlite"
	"github.com/scoutpluse/scoutsync/internal/store"
)

var dbSeq atomic.Int64

func newService(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:authtest%d?mode=memory&cache=shared", dbSeq.Add(1))
	kv, err := sqlite.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	st := store.New(kv, bus.New(), zap.NewNop(), "")
	require.NoError(t, st.SaveUsers(context.Background(), map[string]model.User{
		"leader@scouts.org": {
			ID: "2", Email: "leader@scouts.org", Password: "Bashar", Role: model.RoleLeader,
		},
	}))
	lim := limiter.NewMemory(time.Minute, 3, 5*time.Minute)
	return New(st, lim, []byte("test-sign-key"), time.Hour, zap.NewNop())
}

func TestService_Login(t *testing.T) {
	s := newService(t)
	sess, err := s.Login(context.Background(), "leader@scouts.org", "Bashar", "192.0.2.1")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)
	require.Equal(t, "2", sess.User.ID)
	require.Empty(t, sess.User.Password, "credentials never leave the service")

	userID, err := s.Verify(sess.Token)
	require.NoError(t, err)
	require.Equal(t, "2", userID)
}

func TestService_LoginRejectsBadCredentials(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.Login(ctx, "leader@scouts.org", "wrong", "192.0.2.1")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = s.Login(ctx, "nobody@scouts.org", "Bashar", "192.0.2.1")
	require.ErrorIs(t, err, errs.ErrUnauthorized, "unknown accounts look like wrong passwords")
}

func TestService_LoginRateLimited(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.Login(ctx, "leader@scouts.org", "wrong", "192.0.2.1")
		require.ErrorIs(t, err, errs.ErrUnauthorized)
	}
	_, err := s.Login(ctx, "leader@scouts.org", "wrong", "192.0.2.1")
	require.ErrorIs(t, err, errs.ErrRateLimited)

	// even the right password is refused while blocked
	_, err = s.Login(ctx, "leader@scouts.org", "Bashar", "192.0.2.1")
	require.ErrorIs(t, err, errs.ErrRateLimited)

	// a different source address is not affected
	_, err = s.Login(ctx, "leader@scouts.org", "Bashar", "192.0.2.9")
	require.NoError(t, err)
}

func TestService_VerifyRejectsGarbage(t *testing.T) {
	s := newService(t)
	_, err := s.Verify("not-a-token")
	require.ErrorIs(t, err, errs.ErrInvalidToken)

	other := New(s.store, limiter.NewMemory(time.Minute, 3, time.Minute),
		[]byte("different-key"), time.Hour, zap.NewNop())
	sess, err := other.Login(context.Background(), "leader@scouts.org", "Bashar", "192.0.2.1")
	require.NoError(t, err)
	_, err = s.Verify(sess.Token)
	require.ErrorIs(t, err, errs.ErrInvalidToken, "tokens signed with another key are invalid")
}
