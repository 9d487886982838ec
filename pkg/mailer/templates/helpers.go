package templates

import (
	"time"
)

// Option pattern
type Option func(*EmailData)

func WithIP(ip string) Option        { return func(d *EmailData) { d.IP = ip } }
func WithUserAgent(ua string) Option { return func(d *EmailData) { d.UserAgent = ua } }
func WithTime(t time.Time) Option {
	return func(d *EmailData) { d.Time = t.UTC().Format("02 January 2006, 15:04") }
}
func WithSupportURL(url string) Option { return func(d *EmailData) { d.SupportURL = url } }

func WithExpiresIn(dur time.Duration) Option {
	return func(d *EmailData) {
		utc := time.Now().Add(dur).UTC()
		d.ExpiresAt = utc
		d.ExpiresAtText = utc.Format("02 January 2006, 15:04")
	}
}

// NewBaseEmailData fills the common fields, then applies opts.
func NewBaseEmailData(appName, typ, name, email string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		Email:          email,
		RecipientEmail: email,
		Type:           typ,
		AppName:        appName,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewVerifyEmailData(appName, name, email, verifyURL string, opts ...Option) map[string]any {
	d := NewBaseEmailData(appName, VerifyEmail, name, email, opts...)
	d.VerifyURL = verifyURL
	return ToMap(d)
}

func NewPasswordResetData(appName, name, email, resetURL string, opts ...Option) map[string]any {
	d := NewBaseEmailData(appName, PasswordReset, name, email, opts...)
	d.ResetURL = resetURL
	return ToMap(d)
}

func NewPasswordChangedData(appName, name, email string, opts ...Option) map[string]any {
	return ToMap(NewBaseEmailData(appName, PasswordChanged, name, email, opts...))
}
