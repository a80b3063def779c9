package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/redirector/internal/database"
	"github.com/vadimbarashkov/redirector/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var errUnknown = errors.New("unknown error")

type MockLinkRepository struct {
	mock.Mock
}

func (r *MockLinkRepository) Create(ctx context.Context, link *models.Link) (*models.Link, error) {
	args := r.Called(ctx, link)
	created, _ := args.Get(0).(*models.Link)
	return created, args.Error(1)
}

func (r *MockLinkRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.Link, error) {
	args := r.Called(ctx, shortCode)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) Update(ctx context.Context, shortCode, originalURL string) (*models.Link, error) {
	args := r.Called(ctx, shortCode, originalURL)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) SoftDelete(ctx context.Context, shortCode string) error {
	args := r.Called(ctx, shortCode)
	return args.Error(0)
}

func setupLinkService(t testing.TB) (*LinkService, *MockLinkRepository, *fakeCache) {
	t.Helper()

	repo := new(MockLinkRepository)
	linkCache := newFakeCache()
	svc := NewLinkService(repo, linkCache, 7)

	return svc, repo, linkCache
}

func TestLinkService_CreateLink(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc, repo, _ := setupLinkService(t)

		repo.On("Create", mock.Anything, mock.MatchedBy(func(link *models.Link) bool {
			return link.OriginalURL == "https://example.com" && len(link.ShortCode) == 7
		})).Return(&models.Link{ID: 1, ShortCode: "abcdefg", OriginalURL: "https://example.com"}, nil)

		link, err := svc.CreateLink(context.TODO(), CreateLinkParams{OriginalURL: "https://example.com"})

		require.NoError(t, err)
		assert.Equal(t, int64(1), link.ID)
		repo.AssertExpectations(t)
	})

	t.Run("hashes the password when one is given", func(t *testing.T) {
		svc, repo, _ := setupLinkService(t)

		repo.On("Create", mock.Anything, mock.MatchedBy(func(link *models.Link) bool {
			if link.PasswordHash == nil {
				return false
			}
			return bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte("secret")) == nil
		})).Return(&models.Link{ID: 1}, nil)

		_, err := svc.CreateLink(context.TODO(), CreateLinkParams{
			OriginalURL: "https://example.com",
			Password:    "secret",
		})

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("retries with a longer code on collision", func(t *testing.T) {
		svc, repo, _ := setupLinkService(t)

		repo.On("Create", mock.Anything, mock.MatchedBy(func(link *models.Link) bool {
			return len(link.ShortCode) == 7
		})).Return(nil, database.ErrShortCodeExists).Once()
		repo.On("Create", mock.Anything, mock.MatchedBy(func(link *models.Link) bool {
			return len(link.ShortCode) == 8
		})).Return(&models.Link{ID: 2}, nil).Once()

		link, err := svc.CreateLink(context.TODO(), CreateLinkParams{OriginalURL: "https://example.com"})

		require.NoError(t, err)
		assert.Equal(t, int64(2), link.ID)
		repo.AssertExpectations(t)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		svc, repo, _ := setupLinkService(t)

		repo.On("Create", mock.Anything, mock.Anything).Return(nil, database.ErrShortCodeExists)

		link, err := svc.CreateLink(context.TODO(), CreateLinkParams{OriginalURL: "https://example.com"})

		assert.Nil(t, link)
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	})

	t.Run("unknown error", func(t *testing.T) {
		svc, repo, _ := setupLinkService(t)

		repo.On("Create", mock.Anything, mock.Anything).Return(nil, errUnknown)

		link, err := svc.CreateLink(context.TODO(), CreateLinkParams{OriginalURL: "https://example.com"})

		assert.Nil(t, link)
		assert.ErrorIs(t, err, errUnknown)
	})
}

func TestLinkService_ModifyLink(t *testing.T) {
	t.Run("invalidates the cache entry on success", func(t *testing.T) {
		svc, repo, linkCache := setupLinkService(t)

		linkCache.Set(context.TODO(), "abc", &models.LinkSnapshot{ID: 1, OriginalURL: "https://old.example.com", ClickCount: 3})

		repo.On("Update", mock.Anything, "abc", "https://new.example.com").
			Return(&models.Link{ID: 1, ShortCode: "abc", OriginalURL: "https://new.example.com"}, nil)

		link, err := svc.ModifyLink(context.TODO(), "abc", "https://new.example.com")

		require.NoError(t, err)
		assert.Equal(t, "https://new.example.com", link.OriginalURL)

		_, ok := linkCache.Get(context.TODO(), "abc")
		assert.False(t, ok)
	})

	t.Run("link not found", func(t *testing.T) {
		svc, repo, linkCache := setupLinkService(t)

		repo.On("Update", mock.Anything, "abc", "https://example.com").
			Return(nil, database.ErrLinkNotFound)

		link, err := svc.ModifyLink(context.TODO(), "abc", "https://example.com")

		assert.Nil(t, link)
		assert.ErrorIs(t, err, database.ErrLinkNotFound)
		assert.Empty(t, linkCache.invalidated)
	})
}

func TestLinkService_DeleteLink(t *testing.T) {
	t.Run("invalidates the cache entry on success", func(t *testing.T) {
		svc, repo, linkCache := setupLinkService(t)

		linkCache.Set(context.TODO(), "abc", &models.LinkSnapshot{ID: 1, OriginalURL: "https://example.com"})

		repo.On("SoftDelete", mock.Anything, "abc").Return(nil)

		err := svc.DeleteLink(context.TODO(), "abc")

		require.NoError(t, err)

		_, ok := linkCache.Get(context.TODO(), "abc")
		assert.False(t, ok)
	})

	t.Run("link not found", func(t *testing.T) {
		svc, repo, linkCache := setupLinkService(t)

		repo.On("SoftDelete", mock.Anything, "abc").Return(database.ErrLinkNotFound)

		err := svc.DeleteLink(context.TODO(), "abc")

		assert.ErrorIs(t, err, database.ErrLinkNotFound)
		assert.Empty(t, linkCache.invalidated)
	})
}
