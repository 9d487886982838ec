package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	repo "github.com/oksasatya/anaqa-user-service/internal/domain/repository"
	"github.com/oksasatya/anaqa-user-service/internal/infrastructure/cache"
	"github.com/oksasatya/anaqa-user-service/internal/infrastructure/search"
	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
)

type fixture struct {
	repo  *mockUserRepo
	mail  *capturePublisher
	audit *capturePublisher
	svc   *UserService
}

func newFixture(t *testing.T, r repo.UserRepository, index UserIndexer) *fixture {
	t.Helper()
	mail, audit := &capturePublisher{}, &capturePublisher{}
	log := helpers.NewNopLogger()
	deps := UserServiceDeps{
		Repo:    r,
		Hasher:  plainHasher{},
		Tokens:  helpers.NewJWTManager(strings.Repeat("a", 32), strings.Repeat("r", 32), time.Minute, time.Hour),
		Guard:   cache.NewMemoryLoginGuard(3, time.Minute),
		Verify:  cache.NewMemoryTokenStore(),
		Mail:    mail,
		Auditor: NewAuditor(log, audit),
		Logger:  log,
		Settings: Settings{
			AppName:          "anaqa",
			VerifyEmailURL:   "https://app.example/verify",
			ResetPasswordURL: "https://app.example/reset",
			PasswordResetTTL: 30 * time.Minute,
			EmailVerifyTTL:   24 * time.Hour,
		},
	}
	if index != nil {
		deps.Index = index
	}
	f := &fixture{mail: mail, audit: audit, svc: NewUserService(deps)}
	if m, ok := r.(*mockUserRepo); ok {
		f.repo = m
	}
	return f
}

func storedUser() *entity.User {
	return &entity.User{
		ID:       "11111111-1111-1111-1111-111111111111",
		Email:    "jane@example.com",
		Password: "hashed:password123",
		Name:     "Jane",
		Role:     entity.RoleCustomer,
	}
}

func TestCreateUser(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(m *mockUserRepo)
		wantKind  apperror.Kind
		wantError bool
	}{
		{
			name: "conflict when email exists",
			setup: func(m *mockUserRepo) {
				m.On("Exists", mock.Anything, "jane@example.com").Return(true, nil)
			},
			wantKind:  apperror.KindConflict,
			wantError: true,
		},
		{
			name: "duplicate key from store becomes conflict",
			setup: func(m *mockUserRepo) {
				m.On("Exists", mock.Anything, "jane@example.com").Return(false, nil)
				m.On("Create", mock.Anything, mock.Anything, "password123").Return(repo.ErrDuplicateEmail)
			},
			wantKind:  apperror.KindConflict,
			wantError: true,
		},
		{
			name: "store failure passes through",
			setup: func(m *mockUserRepo) {
				m.On("Exists", mock.Anything, "jane@example.com").Return(false, errors.New("conn reset"))
			},
			wantKind:  apperror.KindInternal,
			wantError: true,
		},
		{
			name: "created",
			setup: func(m *mockUserRepo) {
				m.On("Exists", mock.Anything, "jane@example.com").Return(false, nil)
				m.On("Create", mock.Anything, mock.Anything, "password123").Run(func(args mock.Arguments) {
					u := args.Get(1).(*entity.User)
					u.ID = "new-id"
					u.Role = entity.RoleCustomer
				}).Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockUserRepo{}
			tt.setup(m)
			f := newFixture(t, m, nil)

			got, err := f.svc.CreateUser(context.Background(), "", CreateUserInput{
				Email: "  Jane@Example.com", Password: "password123", Name: "Jane",
			})
			if tt.wantError {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperror.KindOf(err))
				if tt.wantKind == apperror.KindConflict {
					assert.Equal(t, "User with this email already exists", err.Error())
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "new-id", got.ID)
			assert.Equal(t, "jane@example.com", got.Email)

			events := f.audit.all()
			require.Len(t, events, 1)
			ev := events[0].(AuditEvent)
			assert.Equal(t, ActionUserCreated, ev.Action)
			assert.Equal(t, "new-id", ev.ActorID)
			m.AssertExpectations(t)
		})
	}
}

func TestCreateUser_ConcurrentSameEmail(t *testing.T) {
	r := newRaceRepo()
	f := newFixture(t, r, nil)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateUser(context.Background(), "", CreateUserInput{
				Email: "race@example.com", Password: "password123", Name: "Race",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case apperror.Is(err, apperror.KindConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
}

func TestUpdateUser(t *testing.T) {
	t.Run("empty patch is rejected", func(t *testing.T) {
		f := newFixture(t, &mockUserRepo{}, nil)
		_, err := f.svc.UpdateUser(context.Background(), "admin", "id", entity.UserPatch{})
		assert.True(t, apperror.Is(err, apperror.KindValidation))
	})

	t.Run("duplicate email", func(t *testing.T) {
		m := &mockUserRepo{}
		email := "Taken@Example.com"
		patch := entity.UserPatch{Email: &email}
		m.On("Update", mock.Anything, "id", patch).Return(nil, repo.ErrDuplicateEmail)
		f := newFixture(t, m, nil)

		_, err := f.svc.UpdateUser(context.Background(), "admin", "id", patch)
		ae, ok := apperror.As(err)
		require.True(t, ok)
		assert.Equal(t, apperror.KindConflict, ae.Kind)
		assert.Equal(t, map[string]any{"email": "taken@example.com"}, ae.Context)
	})

	t.Run("audits changed field names and reindexes", func(t *testing.T) {
		m := &mockUserRepo{}
		idx := &mockIndexer{}
		name, pwd := "Janet", "newpassword1"
		patch := entity.UserPatch{Name: &name, Password: &pwd}
		u := storedUser()
		u.Name = name
		m.On("Update", mock.Anything, u.ID, patch).Return(u, nil)
		idx.On("Index", mock.Anything, u.Public()).Return(nil)
		f := newFixture(t, m, idx)

		got, err := f.svc.UpdateUser(context.Background(), "admin-id", u.ID, patch)
		require.NoError(t, err)
		assert.Equal(t, "Janet", got.Name)

		ev := f.audit.all()[0].(AuditEvent)
		assert.Equal(t, ActionUserUpdated, ev.Action)
		assert.Equal(t, "admin-id", ev.ActorID)
		assert.Equal(t, []string{"name", "password"}, ev.Fields)
		idx.AssertExpectations(t)
	})
}

func TestDeleteUser(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		m := &mockUserRepo{}
		m.On("Delete", mock.Anything, "missing").Return(apperror.NotFound("User", "missing"))
		f := newFixture(t, m, nil)

		err := f.svc.DeleteUser(context.Background(), "admin", "missing")
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
		assert.Empty(t, f.audit.all())
	})

	t.Run("removes from index even if index fails", func(t *testing.T) {
		m := &mockUserRepo{}
		idx := &mockIndexer{}
		m.On("Delete", mock.Anything, "id").Return(nil)
		idx.On("Remove", mock.Anything, "id").Return(errors.New("es down"))
		f := newFixture(t, m, idx)

		require.NoError(t, f.svc.DeleteUser(context.Background(), "admin", "id"))
		idx.AssertExpectations(t)
	})
}

func TestListUsers_NormalizesPaging(t *testing.T) {
	tests := []struct {
		name                string
		page, limit         int
		wantPage, wantLimit int
		total               int64
		wantTotalPages      int
	}{
		{"defaults out of range", 0, 500, 1, 100, 250, 3},
		{"exact multiple", 2, 10, 2, 10, 20, 2},
		{"empty", 1, 10, 1, 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockUserRepo{}
			f := repo.UserFilter{Role: entity.RoleAdmin}
			m.On("FindAll", mock.Anything, f, tt.wantPage, tt.wantLimit).
				Return(repo.UserPage{Items: []*entity.User{storedUser()}, Total: tt.total}, nil)
			svc := newFixture(t, m, nil).svc

			got, err := svc.ListUsers(context.Background(), tt.page, tt.limit, f)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.total, got.Total)
			assert.Equal(t, tt.wantTotalPages, got.TotalPages)
			assert.Len(t, got.Items, 1)
		})
	}
}

func TestCountByRole(t *testing.T) {
	m := &mockUserRepo{}
	m.On("CountByRole", mock.Anything, entity.RoleCustomer).Return(int64(7), nil)
	m.On("CountByRole", mock.Anything, entity.RoleAdmin).Return(int64(2), nil)

	got, err := newFixture(t, m, nil).svc.CountByRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[entity.Role]int64{entity.RoleCustomer: 7, entity.RoleAdmin: 2}, got)
}

func TestSearchUsers(t *testing.T) {
	t.Run("uses the index", func(t *testing.T) {
		idx := &mockIndexer{}
		idx.On("Search", mock.Anything, "jan", 1, 10).
			Return(search.SearchResult{Items: []search.UserDoc{{ID: "1", Name: "Jane"}}, Total: 11}, nil)
		got, err := newFixture(t, &mockUserRepo{}, idx).svc.SearchUsers(context.Background(), "jan", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, got.TotalPages)
		assert.Equal(t, "Jane", got.Items[0].Name)
	})

	t.Run("falls back to the repository", func(t *testing.T) {
		m := &mockUserRepo{}
		m.On("FindAll", mock.Anything, repo.UserFilter{Search: "jan"}, 1, 10).
			Return(repo.UserPage{Items: []*entity.User{storedUser()}, Total: 1}, nil)
		got, err := newFixture(t, m, nil).svc.SearchUsers(context.Background(), "jan", 0, 10)
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "jane@example.com", got.Items[0].Email)
	})
}
