package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSRFTokenLifecycle(t *testing.T) {
	manager := NewCSRFManager("secret")
	sess := &Session{ID: "abc", values: map[string]string{}}

	token, err := manager.EnsureToken(sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	again, err := manager.EnsureToken(sess)
	require.NoError(t, err)
	require.Equal(t, token, again)

	require.NoError(t, manager.VerifyToken(sess, token))
	require.ErrorIs(t, manager.VerifyToken(sess, "other"), ErrCSRFTokenMismatch)
	require.ErrorIs(t, manager.VerifyToken(sess, ""), ErrCSRFTokenMissing)
	require.ErrorIs(t, manager.VerifyToken(nil, token), ErrCSRFTokenMissing)
}

func TestCSRFTokenIsBoundToSession(t *testing.T) {
	manager := NewCSRFManager("secret")
	sess := &Session{ID: "abc", values: map[string]string{}}
	token, err := manager.EnsureToken(sess)
	require.NoError(t, err)

	sess.ID = "renewed"
	require.ErrorIs(t, manager.VerifyToken(sess, token), ErrCSRFTokenMismatch)

	fresh, err := manager.EnsureToken(sess)
	require.NoError(t, err)
	require.NotEqual(t, token, fresh)
	require.NoError(t, manager.VerifyToken(sess, fresh))

	other := NewCSRFManager("other-secret")
	require.ErrorIs(t, other.VerifyToken(sess, fresh), ErrCSRFTokenMismatch)
}

func TestCSRFRotateReplacesToken(t *testing.T) {
	manager := NewCSRFManager("secret")
	sess := &Session{ID: "abc", values: map[string]string{}}
	first, err := manager.EnsureToken(sess)
	require.NoError(t, err)

	rotated, err := manager.RotateToken(sess)
	require.NoError(t, err)
	require.NotEqual(t, first, rotated)
	require.ErrorIs(t, manager.VerifyToken(sess, first), ErrCSRFTokenMismatch)
	require.NoError(t, manager.VerifyToken(sess, rotated))
}
