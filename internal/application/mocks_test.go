package application

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	repo "github.com/oksasatya/anaqa-user-service/internal/domain/repository"
	"github.com/oksasatya/anaqa-user-service/internal/infrastructure/search"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
)

type mockUserRepo struct{ mock.Mock }

func userArg(args mock.Arguments, i int) *entity.User {
	u, _ := args.Get(i).(*entity.User)
	return u
}

func (m *mockUserRepo) Create(ctx context.Context, u *entity.User, password string) error {
	return m.Called(ctx, u, password).Error(0)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*entity.User, error) {
	args := m.Called(ctx, id)
	return userArg(args, 0), args.Error(1)
}

func (m *mockUserRepo) FindByIDOrFail(ctx context.Context, id string) (*entity.User, error) {
	args := m.Called(ctx, id)
	return userArg(args, 0), args.Error(1)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	args := m.Called(ctx, email)
	return userArg(args, 0), args.Error(1)
}

func (m *mockUserRepo) FindByRefreshToken(ctx context.Context, digest string) (*entity.User, error) {
	args := m.Called(ctx, digest)
	return userArg(args, 0), args.Error(1)
}

func (m *mockUserRepo) FindByResetToken(ctx context.Context, digest string, now time.Time) (*entity.User, error) {
	args := m.Called(ctx, digest, now)
	return userArg(args, 0), args.Error(1)
}

func (m *mockUserRepo) FindAll(ctx context.Context, f repo.UserFilter, page, limit int) (repo.UserPage, error) {
	args := m.Called(ctx, f, page, limit)
	return args.Get(0).(repo.UserPage), args.Error(1)
}

func (m *mockUserRepo) Update(ctx context.Context, id string, patch entity.UserPatch) (*entity.User, error) {
	args := m.Called(ctx, id, patch)
	return userArg(args, 0), args.Error(1)
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockUserRepo) Exists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) CountByRole(ctx context.Context, role entity.Role) (int64, error) {
	args := m.Called(ctx, role)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *mockUserRepo) SetRefreshToken(ctx context.Context, id, digest string) error {
	return m.Called(ctx, id, digest).Error(0)
}

func (m *mockUserRepo) SetResetToken(ctx context.Context, id, digest string, expiresAt time.Time) error {
	return m.Called(ctx, id, digest, expiresAt).Error(0)
}

func (m *mockUserRepo) ResetPassword(ctx context.Context, id, password string) error {
	return m.Called(ctx, id, password).Error(0)
}

type mockProfileRepo struct{ mock.Mock }

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID string) (*entity.Profile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*entity.Profile)
	return p, args.Error(1)
}

func (m *mockProfileRepo) Save(ctx context.Context, p *entity.Profile) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProfileRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockIndexer struct{ mock.Mock }

func (m *mockIndexer) Index(ctx context.Context, u entity.PublicUser) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockIndexer) Remove(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockIndexer) Search(ctx context.Context, q string, page, limit int) (search.SearchResult, error) {
	args := m.Called(ctx, q, page, limit)
	return args.Get(0).(search.SearchResult), args.Error(1)
}

// capturePublisher records every published body.
type capturePublisher struct {
	mu   sync.Mutex
	msgs []any
}

func (p *capturePublisher) PublishJSON(_ context.Context, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, body)
	return nil
}

func (p *capturePublisher) all() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.msgs...)
}

// plainHasher makes stored hashes predictable: "hashed:<plain>".
type plainHasher struct{}

func (plainHasher) Hash(_ context.Context, plain string) (string, error) {
	return "hashed:" + plain, nil
}

func (plainHasher) Compare(_ context.Context, hash, plain string) error {
	if hash != "hashed:"+plain {
		return helpers.ErrPasswordMismatch
	}
	return nil
}

type fakeUploader struct {
	url  string
	body string
}

func (f *fakeUploader) Upload(_ context.Context, userID, filename, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.body = string(b)
	return f.url + "/" + userID + "/" + strings.ToLower(filename), nil
}

// raceRepo enforces unique emails like the database index, but its Exists
// always answers false so concurrent creates all reach Create.
type raceRepo struct {
	mockUserRepo
	mu     sync.Mutex
	emails map[string]string
	seq    int
}

func newRaceRepo() *raceRepo { return &raceRepo{emails: map[string]string{}} }

func (r *raceRepo) Exists(context.Context, string) (bool, error) { return false, nil }

func (r *raceRepo) Create(ctx context.Context, u *entity.User, password string) error {
	if err := entity.BeforeSaveUser(ctx, u, password, plainHasher{}); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.emails[u.Email]; taken {
		return repo.ErrDuplicateEmail
	}
	r.seq++
	u.ID = fmt.Sprintf("user-%d", r.seq)
	r.emails[u.Email] = u.ID
	return nil
}
