package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authcore/backend/internal/account/domain"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	a := &domain.Account{ID: "a1", Email: "alice@example.com", PasswordHash: "h"}
	require.NoError(t, r.Create(ctx, a))

	got, err := r.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a1", got.ID)

	got.Name = "mutated"
	again, _ := r.GetByID(ctx, "a1")
	assert.Empty(t, again.Name, "returned accounts must be copies")

	err = r.Create(ctx, &domain.Account{ID: "a2", Email: "Alice@Example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	r.Delete(ctx, "a1")
	missing, err := r.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
