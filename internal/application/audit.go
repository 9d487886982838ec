package application

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const auditPublishTimeout = 2 * time.Second

// Audit actions
const (
	ActionUserCreated           = "user.created"
	ActionUserUpdated           = "user.updated"
	ActionUserDeleted           = "user.deleted"
	ActionEmailVerified         = "user.email_verified"
	ActionLogin                 = "user.login"
	ActionLoginFailed           = "user.login_failed"
	ActionLoginLocked           = "user.login_locked"
	ActionLogout                = "user.logout"
	ActionPasswordResetRequest  = "user.password_reset_requested"
	ActionPasswordReset         = "user.password_reset"
	ActionPasswordChanged       = "user.password_changed"
	ActionVerificationRequested = "user.verification_requested"
	ActionProfileSaved          = "profile.saved"
	ActionProfileDeleted        = "profile.deleted"
	ActionAvatarUploaded        = "profile.avatar_uploaded"
)

// AuditEvent records who did what to which user. Fields lists the changed
// attribute names; values are never recorded.
type AuditEvent struct {
	Action    string    `json:"action"`
	ActorID   string    `json:"actorId"`
	SubjectID string    `json:"subjectId"`
	Fields    []string  `json:"fields,omitempty"`
	At        time.Time `json:"at"`
}

// Auditor logs audit events and, when a publisher is set, forwards them to
// the audit queue. Publishing is best-effort and never fails the mutation.
type Auditor struct {
	log logrus.FieldLogger
	pub Publisher
}

func NewAuditor(log logrus.FieldLogger, pub Publisher) *Auditor {
	return &Auditor{log: log, pub: pub}
}

func (a *Auditor) Record(ctx context.Context, ev AuditEvent) {
	if a == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	entry := a.log.WithFields(logrus.Fields{
		"audit":      ev.Action,
		"actor_id":   ev.ActorID,
		"subject_id": ev.SubjectID,
	})
	if len(ev.Fields) > 0 {
		entry = entry.WithField("fields", ev.Fields)
	}
	entry.Info("audit")

	if a.pub == nil {
		return
	}
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditPublishTimeout)
	defer cancel()
	if err := a.pub.PublishJSON(c, ev); err != nil {
		a.log.WithError(err).WithField("audit", ev.Action).Warn("publish audit event failed")
	}
}
