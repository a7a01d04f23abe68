package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sanosuguru/go-event-booking/internal/config"
	"github.com/sanosuguru/go-event-booking/internal/domain/user"
)

// MockUserRepository implements user.Repository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *user.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func newAuthTestService() (*AuthService, *MockUserRepository) {
	repo := new(MockUserRepository)
	cfg := config.AuthConfig{
		JWTSecret:      "test-secret",
		AccessTokenTTL: 15 * time.Minute,
		BcryptCost:     bcrypt.MinCost, // テストではコストを下げる
	}
	return NewAuthService(repo, cfg), repo
}

func TestAuthService_Register(t *testing.T) {
	t.Run("正常に登録できる", func(t *testing.T) {
		svc, repo := newAuthTestService()
		ctx := context.Background()

		repo.On("Create", ctx, mock.AnythingOfType("*user.User")).Return(nil)

		u, err := svc.Register(ctx, RegisterInput{
			Name:     "山田太郎",
			Email:    "yamada@example.com",
			Password: "secret-password",
		})

		require.NoError(t, err)
		assert.Equal(t, "yamada@example.com", u.Email)
		assert.Equal(t, user.RoleUser, u.Role)
		// 平文パスワードは保存されない
		assert.NotEqual(t, "secret-password", u.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret-password")))
	})

	t.Run("パスワード未指定はエラー", func(t *testing.T) {
		svc, repo := newAuthTestService()

		_, err := svc.Register(context.Background(), RegisterInput{
			Name:  "山田太郎",
			Email: "yamada@example.com",
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, user.ErrPasswordRequired))
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("メールアドレス重複はエラー", func(t *testing.T) {
		svc, repo := newAuthTestService()
		ctx := context.Background()

		repo.On("Create", ctx, mock.AnythingOfType("*user.User")).Return(user.ErrEmailAlreadyExists)

		_, err := svc.Register(ctx, RegisterInput{
			Name:     "山田太郎",
			Email:    "existing@example.com",
			Password: "secret",
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, user.ErrEmailAlreadyExists))
	})
}

func TestAuthService_Login(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	require.NoError(t, err)

	stored := &user.User{
		ID:           "user-1",
		Name:         "山田太郎",
		Email:        "yamada@example.com",
		PasswordHash: string(hash),
		Role:         user.RoleAdmin,
	}

	t.Run("正しい資格情報でトークンが発行される", func(t *testing.T) {
		svc, repo := newAuthTestService()
		ctx := context.Background()

		repo.On("GetByEmail", ctx, "yamada@example.com").Return(stored, nil)

		token, u, err := svc.Login(ctx, "yamada@example.com", "correct-password")

		require.NoError(t, err)
		assert.Equal(t, "user-1", u.ID)
		require.NotEmpty(t, token)

		// 発行したトークンの署名とクレームを検証
		parsed, err := jwt.Parse(token, func(tk *jwt.Token) (interface{}, error) {
			return []byte("test-secret"), nil
		})
		require.NoError(t, err)
		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, "user-1", claims["sub"])
		assert.Equal(t, "admin", claims["role"])
	})

	t.Run("パスワード不一致", func(t *testing.T) {
		svc, repo := newAuthTestService()
		ctx := context.Background()

		repo.On("GetByEmail", ctx, "yamada@example.com").Return(stored, nil)

		token, u, err := svc.Login(ctx, "yamada@example.com", "wrong-password")

		require.Error(t, err)
		assert.True(t, errors.Is(err, user.ErrInvalidCredentials))
		assert.Empty(t, token)
		assert.Nil(t, u)
	})

	t.Run("存在しないユーザーも同じエラーを返す", func(t *testing.T) {
		svc, repo := newAuthTestService()
		ctx := context.Background()

		repo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, user.ErrUserNotFound)

		_, _, err := svc.Login(ctx, "nobody@example.com", "any-password")

		require.Error(t, err)
		assert.True(t, errors.Is(err, user.ErrInvalidCredentials))
	})
}

func TestAuthService_GetUser(t *testing.T) {
	svc, repo := newAuthTestService()
	ctx := context.Background()

	expected := &user.User{ID: "user-1", Name: "山田太郎"}
	repo.On("GetByID", ctx, "user-1").Return(expected, nil)

	u, err := svc.GetUser(ctx, "user-1")

	require.NoError(t, err)
	assert.Equal(t, expected, u)
}
