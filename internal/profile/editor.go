package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zarlcorp/zclover/internal/api"
	"github.com/zarlcorp/zclover/internal/form"
	"github.com/zarlcorp/zclover/internal/handle"
	"github.com/zarlcorp/zclover/internal/notify"
	"github.com/zarlcorp/zclover/internal/query"
)

// Remote is the slice of the API the editor mutates through.
type Remote interface {
	UpdateProfile(ctx context.Context, p api.ProfileUpdate) (api.Envelope, error)
	ChangePassword(ctx context.Context, p api.PasswordChange) (api.Envelope, error)
	UpdateAvatar(ctx context.Context, filename string, data []byte) (api.Envelope, error)
}

// Config wires an Editor.
type Config struct {
	Remote   Remote
	Cache    *query.Client
	Notifier notify.Notifier
	Logger   *slog.Logger
	Timeout  time.Duration
	Now      func() time.Time
}

type avatarUpload struct {
	filename string
	data     []byte
}

// Editor owns the info form, the password form and the page mode. The
// two forms never share state: switching modes or submitting one leaves
// the other untouched.
type Editor struct {
	info     *form.Form
	password *form.Form

	cache  *query.Client
	notify notify.Notifier
	log    *slog.Logger
	now    func() time.Time

	updateInfo     *query.Mutation[api.ProfileUpdate, api.Envelope]
	changePassword *query.Mutation[api.PasswordChange, api.Envelope]
	uploadAvatar   *query.Mutation[avatarUpload, api.Envelope]

	mu   sync.Mutex
	mode Mode
	dob  time.Time
}

// NewEditor creates an editor seeded from the cached UserInfo snapshot,
// if one exists.
func NewEditor(cfg Config) *Editor {
	e := &Editor{
		info:     newInfoForm(),
		password: newPasswordForm(),
		cache:    cfg.Cache,
		notify:   cfg.Notifier,
		log:      cfg.Logger,
		now:      cfg.Now,
	}
	if e.notify == nil {
		e.notify = notify.Discard{}
	}
	if e.log == nil {
		e.log = slog.New(slog.DiscardHandler)
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.cache == nil {
		e.cache = query.NewClient(e.log)
	}

	r := cfg.Remote
	e.updateInfo = query.NewMutation(r.UpdateProfile, cfg.Timeout)
	e.changePassword = query.NewMutation(r.ChangePassword, cfg.Timeout)
	e.uploadAvatar = query.NewMutation(func(ctx context.Context, a avatarUpload) (api.Envelope, error) {
		return r.UpdateAvatar(ctx, a.filename, a.data)
	}, cfg.Timeout)

	e.dob = e.now()
	if u, ok := query.Cached[api.UserInfo](e.cache, UserInfoKey); ok {
		e.Seed(u)
	}
	return e
}

// Seed resets the info form defaults to u. The password form is not
// affected.
func (e *Editor) Seed(u api.UserInfo) {
	e.info.SetDefaults(map[string]string{
		FieldFirstname: u.Firstname,
		FieldLastname:  u.Lastname,
		FieldPhoneNo:   u.PhoneNo,
		FieldGender:    u.Gender,
	})

	dob := e.now()
	if u.DayOfBirth != "" {
		t, err := ParseDate(u.DayOfBirth)
		if err != nil {
			e.log.Debug("seed date of birth", "err", err)
		} else {
			dob = t
		}
	}

	e.mu.Lock()
	e.dob = dob
	e.mu.Unlock()
}

// Info returns the profile details form.
func (e *Editor) Info() *form.Form { return e.info }

// Password returns the change-password form.
func (e *Editor) Password() *form.Form { return e.password }

// Mode returns the visible form.
func (e *Editor) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetMode switches the visible form.
func (e *Editor) SetMode(m Mode) {
	e.mu.Lock()
	e.mode = m
	e.mu.Unlock()
}

// Toggle switches between the two forms and returns the new mode.
func (e *Editor) Toggle() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeInfo {
		e.mode = ModePassword
	} else {
		e.mode = ModeInfo
	}
	return e.mode
}

// DateOfBirth returns the pending date of birth.
func (e *Editor) DateOfBirth() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dob
}

// SetDate accepts t only when it lies strictly before now. A rejected
// date raises a warning and keeps the previous value.
func (e *Editor) SetDate(t time.Time) error {
	if !t.Before(e.now()) {
		e.notify.Warning(MsgDateOfBirth)
		return fmt.Errorf("set date %s: %w", FormatDate(t), ErrDateOutOfRange)
	}
	e.mu.Lock()
	e.dob = t
	e.mu.Unlock()
	return nil
}

// ProfileRecord returns the info form's pending edit.
func (e *Editor) ProfileRecord() ProfileEditRecord {
	v := e.info.Values()
	return ProfileEditRecord{
		Firstname:   v[FieldFirstname],
		Lastname:    v[FieldLastname],
		PhoneNo:     v[FieldPhoneNo],
		DateOfBirth: e.DateOfBirth(),
		Gender:      Gender(v[FieldGender]),
	}
}

// PasswordRecord returns the password form's pending edit.
func (e *Editor) PasswordRecord() PasswordChangeRecord {
	v := e.password.Values()
	return PasswordChangeRecord{
		Email:             v[FieldEmail],
		OldPassword:       v[FieldOldPassword],
		NewPassword:       v[FieldNewPassword],
		RepeatNewPassword: v[FieldRepeatNewPassword],
	}
}

// SubmitInfo validates the info form and sends it. On success the cached
// UserInfo is invalidated so the next read refetches it. A submit while
// one is pending returns query.ErrPending.
func (e *Editor) SubmitInfo(ctx context.Context) error {
	err := e.info.Submit(func(map[string]string) error {
		rec := e.ProfileRecord()
		_, err := e.updateInfo.Mutate(ctx, api.ProfileUpdate{
			Firstname:  rec.Firstname,
			Lastname:   rec.Lastname,
			PhoneNo:    rec.PhoneNo,
			DayOfBirth: FormatDate(rec.DateOfBirth),
			Gender:     string(rec.Gender),
		}, query.Callbacks[api.Envelope]{
			OnSuccess: func(api.Envelope) {
				e.notify.Success(MsgInfoUpdated)
				e.cache.Invalidate(UserInfoKey)
			},
			OnError: func(err error) {
				e.log.Debug("update profile", "err", err)
				e.notify.Error(MsgInfoFailed)
			},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// SubmitPassword validates the password form and sends it. The form is
// reset only after a successful change.
func (e *Editor) SubmitPassword(ctx context.Context) error {
	err := e.password.Submit(func(map[string]string) error {
		rec := e.PasswordRecord()
		_, err := e.changePassword.Mutate(ctx, api.PasswordChange(rec), query.Callbacks[api.Envelope]{
			OnSuccess: func(api.Envelope) {
				e.notify.Success(MsgPasswordChanged)
				e.password.Reset()
			},
			OnError: func(err error) {
				e.log.Debug("change password", "err", err)
				if errors.Is(err, api.ErrInvalidPassword) {
					e.notify.Error(MsgInvalidPassword)
					return
				}
				e.notify.Error(MsgPasswordFailed)
			},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// UploadAvatar sends a cropped PNG as the new avatar and invalidates the
// cached UserInfo on success.
func (e *Editor) UploadAvatar(ctx context.Context, filename string, png []byte) error {
	_, err := e.uploadAvatar.Mutate(ctx, avatarUpload{filename: filename, data: png}, query.Callbacks[api.Envelope]{
		OnSuccess: func(api.Envelope) {
			e.notify.Success(MsgAvatarUpdated)
			e.cache.Invalidate(UserInfoKey)
		},
		OnError: func(err error) {
			e.log.Debug("update avatar", "err", err)
			e.notify.Error(MsgAvatarFailed)
		},
	})
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return nil
}

// InfoPending reports whether an info submit is in flight.
func (e *Editor) InfoPending() bool { return e.updateInfo.IsPending() }

// PasswordPending reports whether a password change is in flight.
func (e *Editor) PasswordPending() bool { return e.changePassword.IsPending() }

// AvatarPending reports whether an avatar upload is in flight.
func (e *Editor) AvatarPending() bool { return e.uploadAvatar.IsPending() }

// AvatarSource picks what the avatar slot shows: the local preview
// handle, then the cached remote avatar, then the placeholder.
func (e *Editor) AvatarSource(local handle.Handle) string {
	if !local.IsZero() {
		return string(local)
	}
	if u, ok := query.Cached[api.UserInfo](e.cache, UserInfoKey); ok && u.Avatar != "" {
		return u.Avatar
	}
	return DefaultAvatar
}

// DisplayName returns the cached user's full name.
func (e *Editor) DisplayName() string {
	u, ok := query.Cached[api.UserInfo](e.cache, UserInfoKey)
	if !ok {
		return ""
	}
	switch {
	case u.Firstname == "":
		return u.Lastname
	case u.Lastname == "":
		return u.Firstname
	}
	return u.Firstname + " " + u.Lastname
}
