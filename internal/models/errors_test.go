package models_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/casevault/internal/models"
)

func TestStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  *models.StoreError
		want string
	}{
		{
			name: "with cause",
			err: &models.StoreError{
				Code:  models.ErrCodeAuth,
				Store: "core",
				Op:    "open",
				Err:   errors.New("cipher: message authentication failed"),
			},
			want: "core open [AUTH_ERROR]: cipher: message authentication failed",
		},
		{
			name: "without cause",
			err: &models.StoreError{
				Code:  models.ErrCodeNotOpen,
				Store: "vault",
				Op:    "persist",
			},
			want: "vault persist [NOT_OPEN]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestStoreErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("gcm open failed")
	err := fmt.Errorf("open core: %w", models.NewStoreError(models.ErrCodeAuth, "core", "open", cause))

	assert.ErrorIs(t, err, models.ErrAuthentication)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, models.ErrNotOpen)
	assert.NotErrorIs(t, err, models.ErrInitialization)

	var se *models.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "core", se.Store)
	assert.Equal(t, "open", se.Op)
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"store error", models.NewStoreError(models.ErrCodeInit, "core", "open", nil), models.ErrCodeInit},
		{"wrapped sentinel", fmt.Errorf("persist: %w", models.ErrNotOpen), models.ErrCodeNotOpen},
		{"validation error", &models.ValidationError{Field: "name", Reason: "is required"}, models.ErrCodeValidation},
		{"no store", models.ErrStoreNotConfigured, models.ErrCodeConfig},
		{"unknown", errors.New("boom"), models.ErrCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, models.Code(tt.err))
		})
	}
}

func TestAuthAndNoStoreAreDistinct(t *testing.T) {
	auth := models.NewStoreError(models.ErrCodeAuth, "core", "open", nil)
	noStore := models.NewStoreError(models.ErrCodeConfig, "core", "open", models.ErrStoreNotConfigured)

	assert.NotEqual(t, models.Code(auth), models.Code(noStore))
	assert.NotErrorIs(t, auth, models.ErrStoreNotConfigured)
	assert.NotErrorIs(t, noStore, models.ErrAuthentication)
}

func TestValidationError(t *testing.T) {
	err := &models.ValidationError{Field: "vorname", Reason: "is required"}

	assert.Equal(t, "validation failed: vorname: is required", err.Error())
	assert.ErrorIs(t, err, models.ErrValidation)
}
