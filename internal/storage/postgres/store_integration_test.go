package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/istc-be/internal/models"
	"github.com/hongminglow/istc-be/internal/storage"
)

// TestStoreIntegration runs the ledger and user queries against a live database.
func TestStoreIntegration(t *testing.T) {
	if os.Getenv("RUN_STORE_INTEGRATION") != "true" {
		t.Skip("set RUN_STORE_INTEGRATION=true to run this integration test")
	}
	dbURL := os.Getenv("DATABASE_URL")
	require.NotEmpty(t, dbURL, "DATABASE_URL is required")

	ctx := context.Background()
	store, err := NewStore(ctx, dbURL, Options{MaxConns: 8})
	require.NoError(t, err)
	defer store.Close()

	role, err := store.FindRoleByName(ctx, models.UserRole)
	require.NoError(t, err)
	assert.True(t, role.IsDefault)

	suffix := time.Now().UnixNano()
	user, err := store.CreateUser(ctx, models.User{
		Name:         "Store Test",
		Username:     fmt.Sprintf("store_%d", suffix),
		Email:        fmt.Sprintf("store_%d@example.com", suffix),
		PasswordHash: "hash-0",
		RoleID:       role.ID,
		IsActive:     true,
	})
	require.NoError(t, err)
	defer func() { _ = store.DeleteUser(ctx, user.ID) }()
	assert.Equal(t, models.UserRole, user.Role)

	_, err = store.CreateUser(ctx, models.User{
		Name: "Dup", Username: fmt.Sprintf("dup_%d", suffix), Email: user.Email, PasswordHash: "x", RoleID: role.ID,
	})
	var dup *storage.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Field)

	now := time.Now().UTC().Truncate(time.Microsecond)
	token := models.PasswordResetToken{
		UserID:    user.ID,
		Token:     fmt.Sprintf("tok-%d", suffix),
		ExpiresAt: now.Add(15 * time.Minute),
		CreatedAt: now,
	}
	_, err = store.CreateResetToken(ctx, token, now.Add(-5*time.Minute))
	require.NoError(t, err)

	second := token
	second.Token += "-b"
	_, err = store.CreateResetToken(ctx, second, now.Add(-5*time.Minute))
	require.ErrorIs(t, err, storage.ErrRecentResetToken)

	var wg sync.WaitGroup
	results := make([]error, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.ConsumeResetToken(ctx, token.Token, now.Add(time.Minute), fmt.Sprintf("hash-%d", i+1))
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, storage.ErrTokenNotActionable)
	}
	assert.Equal(t, 1, ok)

	entry, err := store.FindResetToken(ctx, token.Token)
	require.NoError(t, err)
	assert.True(t, entry.IsUsed)
	require.NotNil(t, entry.UsedAt)

	updated, err := store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "hash-0", updated.PasswordHash)
}
