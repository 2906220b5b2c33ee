package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/popeskul/review-sms/internal/repository"
)

func TestRepositoryImpl(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)

	tests := []struct {
		name     string
		validate func(t *testing.T, repo repository.Repository)
	}{
		{
			name: "sub-repositories are wired",
			validate: func(t *testing.T, repo repository.Repository) {
				assert.NotNil(t, repo.Account())
				assert.NotNil(t, repo.Customer())
				assert.NotNil(t, repo.Message())
				assert.NotNil(t, repo.Dispatch())
			},
		},
		{
			name: "sub-repositories return same instance",
			validate: func(t *testing.T, repo repository.Repository) {
				assert.Equal(t, repo.Message(), repo.Message())
				assert.Equal(t, repo.Customer(), repo.Customer())
			},
		},
		{
			name: "ping",
			validate: func(t *testing.T, repo repository.Repository) {
				assert.NoError(t, repo.Ping())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, repo)
		})
	}
}

func TestRepositoryImpl_PingClosed(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	_ = db.Close()

	assert.Error(t, repo.Ping())
}
