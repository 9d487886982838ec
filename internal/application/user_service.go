package application

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	repo "github.com/oksasatya/anaqa-user-service/internal/domain/repository"
	"github.com/oksasatya/anaqa-user-service/internal/infrastructure/search"
	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
	"github.com/oksasatya/anaqa-user-service/pkg/mailer"
	"github.com/oksasatya/anaqa-user-service/pkg/validation"
)

const mailPublishTimeout = 3 * time.Second

// Settings are the service-level knobs taken from configuration.
type Settings struct {
	AppName          string
	VerifyEmailURL   string
	ResetPasswordURL string
	PasswordResetTTL time.Duration
	EmailVerifyTTL   time.Duration
}

// UserServiceDeps are the collaborators of UserService. Mail, Index and the
// Auditor's publisher are optional; nil disables the feature.
type UserServiceDeps struct {
	Repo     repo.UserRepository
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Guard    LoginGuard
	Verify   TokenStore
	Mail     Publisher
	Index    UserIndexer
	Auditor  *Auditor
	Logger   logrus.FieldLogger
	Settings Settings
}

// UserService implements the user use cases. It holds no per-request state.
type UserService struct {
	repo     repo.UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	guard    LoginGuard
	verify   TokenStore
	mail     Publisher
	index    UserIndexer
	auditor  *Auditor
	log      logrus.FieldLogger
	settings Settings
	now      func() time.Time
}

func NewUserService(d UserServiceDeps) *UserService {
	if d.Logger == nil {
		d.Logger = helpers.NewNopLogger()
	}
	return &UserService{
		repo:     d.Repo,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		guard:    d.Guard,
		verify:   d.Verify,
		mail:     d.Mail,
		index:    d.Index,
		auditor:  d.Auditor,
		log:      d.Logger,
		settings: d.Settings,
		now:      time.Now,
	}
}

// CreateUserInput is a new account. An empty Role means Customer.
type CreateUserInput struct {
	Email    string
	Password string
	Name     string
	Role     entity.Role
}

func errEmailTaken(email string) error {
	return apperror.Conflict("User with this email already exists", map[string]any{"email": email})
}

// CreateUser registers a user. actorID is empty for self-registration.
func (s *UserService) CreateUser(ctx context.Context, actorID string, in CreateUserInput) (entity.PublicUser, error) {
	email := entity.NormalizeEmail(in.Email)
	exists, err := s.repo.Exists(ctx, email)
	if err != nil {
		return entity.PublicUser{}, err
	}
	if exists {
		return entity.PublicUser{}, errEmailTaken(email)
	}

	u := &entity.User{Email: email, Name: in.Name, Role: in.Role}
	if err := s.repo.Create(ctx, u, in.Password); err != nil {
		// a concurrent registration won the race past Exists
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return entity.PublicUser{}, errEmailTaken(email)
		}
		return entity.PublicUser{}, err
	}

	if actorID == "" {
		actorID = u.ID
	}
	s.auditor.Record(ctx, AuditEvent{Action: ActionUserCreated, ActorID: actorID, SubjectID: u.ID})
	s.reindex(ctx, u)
	return u.Public(), nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (entity.PublicUser, error) {
	u, err := s.repo.FindByIDOrFail(ctx, id)
	if err != nil {
		return entity.PublicUser{}, err
	}
	return u.Public(), nil
}

// UpdateUser applies a partial update on behalf of actorID.
func (s *UserService) UpdateUser(ctx context.Context, actorID, id string, patch entity.UserPatch) (entity.PublicUser, error) {
	if patch.Empty() {
		return entity.PublicUser{}, apperror.Validation("No fields to update")
	}
	u, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			email := ""
			if patch.Email != nil {
				email = entity.NormalizeEmail(*patch.Email)
			}
			return entity.PublicUser{}, errEmailTaken(email)
		}
		return entity.PublicUser{}, err
	}
	s.auditor.Record(ctx, AuditEvent{Action: ActionUserUpdated, ActorID: actorID, SubjectID: id, Fields: patchFields(patch)})
	s.reindex(ctx, u)
	return u.Public(), nil
}

// DeleteUser removes the user. The profile row goes with it through the
// foreign key cascade.
func (s *UserService) DeleteUser(ctx context.Context, actorID, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.auditor.Record(ctx, AuditEvent{Action: ActionUserDeleted, ActorID: actorID, SubjectID: id})
	if s.index != nil {
		if err := s.index.Remove(ctx, id); err != nil {
			s.log.WithError(err).WithField("user_id", id).Warn("remove user from search index failed")
		}
	}
	return nil
}

// VerifyEmail marks the user's email as verified.
func (s *UserService) VerifyEmail(ctx context.Context, actorID, id string) (entity.PublicUser, error) {
	verified := true
	u, err := s.repo.Update(ctx, id, entity.UserPatch{IsEmailVerified: &verified})
	if err != nil {
		return entity.PublicUser{}, err
	}
	s.auditor.Record(ctx, AuditEvent{Action: ActionEmailVerified, ActorID: actorID, SubjectID: id})
	s.reindex(ctx, u)
	return u.Public(), nil
}

// ListUsers returns one page of users, newest first. page and limit are
// clamped into range.
func (s *UserService) ListUsers(ctx context.Context, page, limit int, f repo.UserFilter) (Page[entity.PublicUser], error) {
	page, limit = validation.NormalizePage(page, limit)
	res, err := s.repo.FindAll(ctx, f, page, limit)
	if err != nil {
		return Page[entity.PublicUser]{}, err
	}
	items := make([]entity.PublicUser, 0, len(res.Items))
	for _, u := range res.Items {
		items = append(items, u.Public())
	}
	return Page[entity.PublicUser]{
		Items:      items,
		Total:      res.Total,
		Page:       page,
		Limit:      limit,
		TotalPages: validation.TotalPages(res.Total, limit),
	}, nil
}

// CountByRole returns the number of users per role.
func (s *UserService) CountByRole(ctx context.Context) (map[entity.Role]int64, error) {
	out := make(map[entity.Role]int64, 2)
	for _, role := range []entity.Role{entity.RoleCustomer, entity.RoleAdmin} {
		n, err := s.repo.CountByRole(ctx, role)
		if err != nil {
			return nil, err
		}
		out[role] = n
	}
	return out, nil
}

// SearchUsers queries the search index. Without one it falls back to the
// repository's substring search.
func (s *UserService) SearchUsers(ctx context.Context, q string, page, limit int) (Page[search.UserDoc], error) {
	page, limit = validation.NormalizePage(page, limit)
	if s.index == nil {
		res, err := s.repo.FindAll(ctx, repo.UserFilter{Search: q}, page, limit)
		if err != nil {
			return Page[search.UserDoc]{}, err
		}
		items := make([]search.UserDoc, 0, len(res.Items))
		for _, u := range res.Items {
			items = append(items, search.NewUserDoc(u.Public()))
		}
		return Page[search.UserDoc]{Items: items, Total: res.Total, Page: page, Limit: limit, TotalPages: validation.TotalPages(res.Total, limit)}, nil
	}

	res, err := s.index.Search(ctx, q, page, limit)
	if err != nil {
		return Page[search.UserDoc]{}, apperror.Internal(err)
	}
	return Page[search.UserDoc]{Items: res.Items, Total: res.Total, Page: page, Limit: limit, TotalPages: validation.TotalPages(res.Total, limit)}, nil
}

func (s *UserService) reindex(ctx context.Context, u *entity.User) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, u.Public()); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("index user failed")
	}
}

// enqueueMail publishes an email job. Delivery is best-effort: failures are
// logged and the calling flow continues.
func (s *UserService) enqueueMail(ctx context.Context, userID string, job mailer.EmailJob) {
	if s.mail == nil {
		s.log.WithFields(logrus.Fields{"user_id": userID, "template": job.Template}).Debug("mail publishing disabled, email skipped")
		return
	}
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailPublishTimeout)
	defer cancel()
	if err := s.mail.PublishJSON(c, job); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "template": job.Template}).Error("enqueue email failed")
	}
}

func patchFields(p entity.UserPatch) []string {
	var out []string
	if p.Name != nil {
		out = append(out, "name")
	}
	if p.Email != nil {
		out = append(out, "email")
	}
	if p.Password != nil {
		out = append(out, "password")
	}
	if p.Role != nil {
		out = append(out, "role")
	}
	if p.IsEmailVerified != nil {
		out = append(out, "isEmailVerified")
	}
	return out
}
