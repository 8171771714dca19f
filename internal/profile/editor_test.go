package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/zarlcorp/zclover/internal/api"
	"github.com/zarlcorp/zclover/internal/handle"
	"github.com/zarlcorp/zclover/internal/notify"
	"github.com/zarlcorp/zclover/internal/query"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)

type fakeRemote struct {
	mu       sync.Mutex
	profiles []api.ProfileUpdate
	changes  []api.PasswordChange
	avatars  []string

	profileErr  error
	passwordErr error
	avatarErr   error

	// block, when set, holds calls until closed
	block chan struct{}
}

func (f *fakeRemote) wait(ctx context.Context) error {
	if f.block == nil {
		return nil
	}
	select {
	case <-f.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRemote) UpdateProfile(ctx context.Context, p api.ProfileUpdate) (api.Envelope, error) {
	if err := f.wait(ctx); err != nil {
		return api.Envelope{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles = append(f.profiles, p)
	return api.Envelope{}, f.profileErr
}

func (f *fakeRemote) ChangePassword(ctx context.Context, p api.PasswordChange) (api.Envelope, error) {
	if err := f.wait(ctx); err != nil {
		return api.Envelope{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, p)
	return api.Envelope{}, f.passwordErr
}

func (f *fakeRemote) UpdateAvatar(ctx context.Context, filename string, data []byte) (api.Envelope, error) {
	if err := f.wait(ctx); err != nil {
		return api.Envelope{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.avatars = append(f.avatars, filename)
	return api.Envelope{}, f.avatarErr
}

func (f *fakeRemote) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.profiles), len(f.changes)
}

var jane = api.UserInfo{
	UserID:     "u1",
	Email:      "jane@example.com",
	Firstname:  "Jane",
	Lastname:   "Doe",
	PhoneNo:    "555-123-4567",
	DayOfBirth: "02/03/1990",
	Gender:     "FEMALE",
	Avatar:     "https://cdn.example.com/jane.png",
}

type fixture struct {
	editor  *Editor
	remote  *fakeRemote
	cache   *query.Client
	toasts  *notify.Queue
	fetches *int
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	remote := &fakeRemote{}
	cache := query.NewClient(nil)
	fetches := 0
	cache.Register(UserInfoKey, func(context.Context) (any, error) {
		fetches++
		return jane, nil
	})
	if r := cache.Query(context.Background(), UserInfoKey); r.Err != nil {
		t.Fatalf("prime cache: %v", r.Err)
	}

	q := &notify.Queue{}
	e := NewEditor(Config{
		Remote:   remote,
		Cache:    cache,
		Notifier: q,
		Now:      func() time.Time { return fixedNow },
	})
	return fixture{editor: e, remote: remote, cache: cache, toasts: q, fetches: &fetches}
}

func (f fixture) toastMessages() []string {
	var out []string
	for _, t := range f.toasts.Drain() {
		out = append(out, fmt.Sprintf("%s: %s", t.Level, t.Message))
	}
	return out
}

func TestSeedFromCachedUserInfo(t *testing.T) {
	f := newFixture(t)

	got := f.editor.ProfileRecord()
	want := ProfileEditRecord{
		Firstname:   "Jane",
		Lastname:    "Doe",
		PhoneNo:     "555-123-4567",
		DateOfBirth: time.Date(1990, 3, 2, 0, 0, 0, 0, time.Local),
		Gender:      Female,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	if name := f.editor.DisplayName(); name != "Jane Doe" {
		t.Errorf("display name: got %q", name)
	}
}

func TestNoCacheStartsEmpty(t *testing.T) {
	e := NewEditor(Config{Remote: &fakeRemote{}, Now: func() time.Time { return fixedNow }})
	if rec := e.ProfileRecord(); rec.Firstname != "" || !rec.DateOfBirth.Equal(fixedNow) {
		t.Errorf("record: %+v", rec)
	}
	if src := e.AvatarSource(""); src != DefaultAvatar {
		t.Errorf("avatar: got %q, want placeholder", src)
	}
}

func TestSubmitInfoSuccess(t *testing.T) {
	f := newFixture(t)
	e := f.editor

	if err := e.Info().Set(FieldFirstname, "Janet"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetDate(time.Date(1991, 12, 9, 0, 0, 0, 0, time.Local)); err != nil {
		t.Fatal(err)
	}
	if err := e.SubmitInfo(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := []api.ProfileUpdate{{
		Firstname:  "Janet",
		Lastname:   "Doe",
		PhoneNo:    "555-123-4567",
		DayOfBirth: "09/12/1991",
		Gender:     "FEMALE",
	}}
	if diff := cmp.Diff(want, f.remote.profiles); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"success: " + MsgInfoUpdated}, f.toastMessages()); diff != "" {
		t.Errorf("toasts (-want +got):\n%s", diff)
	}

	if st := f.cache.State(UserInfoKey); !st.Stale {
		t.Error("UserInfo should be invalidated")
	}
	f.cache.Query(context.Background(), UserInfoKey)
	if *f.fetches != 2 {
		t.Errorf("fetches: got %d, want 2", *f.fetches)
	}
}

func TestSubmitInfoInvalidShowsFieldErrors(t *testing.T) {
	f := newFixture(t)
	e := f.editor

	_ = e.Info().Set(FieldFirstname, "J")
	_ = e.Info().Set(FieldLastname, "")
	_ = e.Info().Set(FieldPhoneNo, "12345")

	err := e.SubmitInfo(context.Background())
	if err == nil {
		t.Fatal("expected validation error")
	}

	want := map[string]string{
		FieldFirstname: MsgMinLength,
		FieldLastname:  MsgLastnameRequired,
		FieldPhoneNo:   MsgPhoneFormat,
	}
	if diff := cmp.Diff(want, e.Info().Errors()); diff != "" {
		t.Errorf("errors (-want +got):\n%s", diff)
	}
	if n, _ := f.remote.calls(); n != 0 {
		t.Errorf("remote called %d times", n)
	}
	if len(f.toasts.Drain()) != 0 {
		t.Error("validation failures should not toast")
	}
}

func TestSubmitInfoFailure(t *testing.T) {
	f := newFixture(t)
	f.remote.profileErr = &api.Error{Kind: api.KindRemote, StatusCode: 500}

	if err := f.editor.SubmitInfo(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if diff := cmp.Diff([]string{"error: " + MsgInfoFailed}, f.toastMessages()); diff != "" {
		t.Errorf("toasts (-want +got):\n%s", diff)
	}
	if st := f.cache.State(UserInfoKey); st.Stale {
		t.Error("failed update should not invalidate")
	}
}

func TestSetDateRejectsFutureAndToday(t *testing.T) {
	f := newFixture(t)
	e := f.editor
	before := e.DateOfBirth()

	for _, d := range []time.Time{fixedNow, fixedNow.Add(24 * time.Hour)} {
		if err := e.SetDate(d); !errors.Is(err, ErrDateOutOfRange) {
			t.Errorf("SetDate(%s): got %v, want ErrDateOutOfRange", d, err)
		}
	}
	if !e.DateOfBirth().Equal(before) {
		t.Error("rejected date should not change the date of birth")
	}
	want := []string{"warning: " + MsgDateOfBirth, "warning: " + MsgDateOfBirth}
	if diff := cmp.Diff(want, f.toastMessages()); diff != "" {
		t.Errorf("toasts (-want +got):\n%s", diff)
	}

	if err := e.SetDate(fixedNow.Add(-time.Second)); err != nil {
		t.Errorf("past date: %v", err)
	}
}

func fillPassword(t *testing.T, e *Editor) {
	t.Helper()
	for name, v := range map[string]string{
		FieldEmail:             "jane@example.com",
		FieldOldPassword:       "old",
		FieldNewPassword:       "new",
		FieldRepeatNewPassword: "new",
	} {
		if err := e.Password().Set(name, v); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSubmitPasswordSuccessResets(t *testing.T) {
	f := newFixture(t)
	fillPassword(t, f.editor)

	if err := f.editor.SubmitPassword(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := []api.PasswordChange{{
		Email:             "jane@example.com",
		OldPassword:       "old",
		NewPassword:       "new",
		RepeatNewPassword: "new",
	}}
	if diff := cmp.Diff(want, f.remote.changes); diff != "" {
		t.Errorf("request (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(PasswordChangeRecord{}, f.editor.PasswordRecord()); diff != "" {
		t.Errorf("form not reset (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"success: " + MsgPasswordChanged}, f.toastMessages()); diff != "" {
		t.Errorf("toasts (-want +got):\n%s", diff)
	}
}

func TestSubmitPasswordInvalidKeepsValues(t *testing.T) {
	f := newFixture(t)
	f.remote.passwordErr = fmt.Errorf("change password: %w", api.ErrInvalidPassword)
	fillPassword(t, f.editor)

	err := f.editor.SubmitPassword(context.Background())
	if !errors.Is(err, api.ErrInvalidPassword) {
		t.Fatalf("got %v, want ErrInvalidPassword", err)
	}
	if got := f.editor.Password().Value(FieldOldPassword); got != "old" {
		t.Errorf("old password: got %q, want it kept", got)
	}
	if diff := cmp.Diff([]string{"error: " + MsgInvalidPassword}, f.toastMessages()); diff != "" {
		t.Errorf("toasts (-want +got):\n%s", diff)
	}
}

func TestSubmitPasswordTransportFailure(t *testing.T) {
	f := newFixture(t)
	f.remote.passwordErr = &api.Error{Kind: api.KindTimeout}
	fillPassword(t, f.editor)

	if err := f.editor.SubmitPassword(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if diff := cmp.Diff([]string{"error: " + MsgPasswordFailed}, f.toastMessages()); diff != "" {
		t.Errorf("toasts (-want +got):\n%s", diff)
	}
}

func TestSubmitPasswordValidation(t *testing.T) {
	f := newFixture(t)
	_ = f.editor.Password().Set(FieldEmail, "not-an-email")

	if err := f.editor.SubmitPassword(context.Background()); err == nil {
		t.Fatal("expected validation error")
	}
	want := map[string]string{
		FieldEmail:             MsgEmailFormat,
		FieldOldPassword:       MsgPasswordRequired,
		FieldNewPassword:       MsgPasswordRequired,
		FieldRepeatNewPassword: MsgPasswordRequired,
	}
	if diff := cmp.Diff(want, f.editor.Password().Errors()); diff != "" {
		t.Errorf("errors (-want +got):\n%s", diff)
	}
}

func TestFormsAreIsolated(t *testing.T) {
	f := newFixture(t)
	e := f.editor

	_ = e.Password().Set(FieldEmail, "bad")
	_ = e.SubmitPassword(context.Background())
	e.Toggle()
	e.Toggle()

	if errs := e.Info().Errors(); len(errs) != 0 {
		t.Errorf("info form picked up errors: %v", errs)
	}
	if err := e.SubmitInfo(context.Background()); err != nil {
		t.Errorf("info submit: %v", err)
	}
	if got := e.Password().Value(FieldEmail); got != "bad" {
		t.Errorf("password form changed: %q", got)
	}
}

func TestDoubleSubmitIsRejected(t *testing.T) {
	f := newFixture(t)
	f.remote.block = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.editor.SubmitInfo(context.Background()) }()

	deadline := time.After(time.Second)
	for !f.editor.InfoPending() {
		select {
		case <-deadline:
			t.Fatal("first submit never became pending")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := f.editor.SubmitInfo(context.Background()); !errors.Is(err, query.ErrPending) {
		t.Errorf("second submit: got %v, want ErrPending", err)
	}

	close(f.remote.block)
	if err := <-done; err != nil {
		t.Errorf("first submit: %v", err)
	}
	if n, _ := f.remote.calls(); n != 1 {
		t.Errorf("remote calls: got %d, want 1", n)
	}
}

func TestToggle(t *testing.T) {
	f := newFixture(t)
	if f.editor.Mode() != ModeInfo {
		t.Fatal("default mode should be info")
	}
	if m := f.editor.Toggle(); m != ModePassword {
		t.Errorf("toggle: got %s", m)
	}
	f.editor.SetMode(ModeInfo)
	if f.editor.Mode() != ModeInfo {
		t.Error("SetMode did not apply")
	}
}

func TestAvatarSourceFallback(t *testing.T) {
	f := newFixture(t)
	reg := handle.NewRegistry()
	local := reg.Create([]byte("x"), "image/png")

	if got := f.editor.AvatarSource(local); got != string(local) {
		t.Errorf("local: got %q", got)
	}
	if got := f.editor.AvatarSource(""); got != jane.Avatar {
		t.Errorf("remote: got %q, want %q", got, jane.Avatar)
	}
}

func TestUploadAvatar(t *testing.T) {
	f := newFixture(t)

	if err := f.editor.UploadAvatar(context.Background(), "avatar.png", []byte("png")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if diff := cmp.Diff([]string{"avatar.png"}, f.remote.avatars); diff != "" {
		t.Errorf("uploads (-want +got):\n%s", diff)
	}
	if !f.cache.State(UserInfoKey).Stale {
		t.Error("UserInfo should be invalidated after avatar upload")
	}

	f.remote.avatarErr = errors.New("boom")
	if err := f.editor.UploadAvatar(context.Background(), "avatar.png", nil); err == nil {
		t.Error("expected error")
	}
	want := []string{"success: " + MsgAvatarUpdated, "error: " + MsgAvatarFailed}
	if diff := cmp.Diff(want, f.toastMessages()); diff != "" {
		t.Errorf("toasts (-want +got):\n%s", diff)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"02/03/1990", time.Date(1990, 3, 2, 0, 0, 0, 0, time.Local), true},
		{"2/3/1990", time.Date(1990, 3, 2, 0, 0, 0, 0, time.Local), true},
		{"31/12/2000", time.Date(2000, 12, 31, 0, 0, 0, 0, time.Local), true},
		{"1990-03-02", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if (err == nil) != tt.ok {
				t.Fatalf("err: %v", err)
			}
			if tt.ok && !got.Equal(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
	if s := FormatDate(time.Date(1991, 1, 5, 0, 0, 0, 0, time.UTC)); s != "05/01/1991" {
		t.Errorf("format: got %q", s)
	}
}

func TestGenderCycle(t *testing.T) {
	if Male.Next() != Female || Female.Next() != Other || Other.Next() != Male {
		t.Error("gender cycle order")
	}
	if Gender("").Next() != Male {
		t.Error("unknown gender should start at Male")
	}
}
