// Package tui implements the root Bubble Tea model for zclover.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zcrypto"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zclover/internal/api"
	"github.com/zarlcorp/zclover/internal/config"
	"github.com/zarlcorp/zclover/internal/handle"
	"github.com/zarlcorp/zclover/internal/intake"
	"github.com/zarlcorp/zclover/internal/notify"
	"github.com/zarlcorp/zclover/internal/profile"
	"github.com/zarlcorp/zclover/internal/query"
	"github.com/zarlcorp/zclover/internal/vault"
)

var accent = zstyle.ZburnAccent

type viewID int

const (
	viewPassword viewID = iota
	viewLogin
	viewMenu
	viewProfile
	viewAvatar
	viewCrop
)

// Options configures the root model.
type Options struct {
	Version  string
	DataDir  string
	Config   *config.Config
	Logger   *slog.Logger
	FirstRun bool

	// Context bounds every request the TUI makes. Defaults to
	// context.Background.
	Context context.Context
}

// Model is the root TUI model.
type Model struct {
	ctx      context.Context
	version  string
	dataDir  string
	cfg      *config.Config
	log      *slog.Logger
	firstRun bool

	vault   *vault.Vault
	client  *api.Client
	cache   *query.Client
	editor  *profile.Editor
	queue   *notify.Queue
	notify  notify.Notifier
	handles *handle.Registry

	// intake and slot live while the profile page is open
	intake      *intake.Pipeline
	slot        *handle.Slot
	avatarFile  string
	profileOpen bool
	// bumped per selected file, matched against decodedMsg
	decodeSeq int

	active   viewID
	password passwordModel
	login    loginModel
	menu     menuModel
	profile  profileModel
	avatar   avatarModel
	crop     cropModel

	// terminal dimensions
	width  int
	height int
}

// userInfoMsg carries a fetched profile snapshot.
type userInfoMsg struct {
	// cache the fetch ran against; a different one means another session
	cache *query.Client
	user  api.UserInfo
	err   error
}

// loggedOutMsg reports that the remote session was ended.
type loggedOutMsg struct{}

// New creates the root TUI model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	q := &notify.Queue{}
	return Model{
		ctx:      ctx,
		version:  opts.Version,
		dataDir:  opts.DataDir,
		cfg:      cfg,
		log:      log,
		firstRun: opts.FirstRun,
		queue:    q,
		notify:   notify.Tee{q, notify.Log{Logger: log}},
		handles:  handle.NewRegistry(),
		active:   viewPassword,
		password: newPasswordModel(opts.FirstRun),
	}
}

func (m Model) Init() tea.Cmd {
	return m.password.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case passwordSubmitMsg:
		return m.openVault(msg.password)

	case loginSubmitMsg:
		return m, m.loginCmd(msg.email, msg.password)

	case loginResultMsg:
		return m.handleLogin(msg)

	case userInfoMsg:
		return m.handleUserInfo(msg)

	case refreshUserMsg:
		return m, m.fetchUserCmd()

	case logoutMsg:
		return m.logout()

	case loggedOutMsg:
		return m, nil

	case openProfileMsg:
		mode := profile.ModeInfo
		if msg.password {
			mode = profile.ModePassword
		}
		m = m.openProfile(mode)
		m.active = viewProfile
		return m, tea.Batch(m.profile.Init(), tea.ClearScreen)

	case navigateMsg:
		return m.navigate(msg.view)

	case avatarSelectMsg:
		return m.selectAvatar(msg.path)

	case decodedMsg:
		return m.handleDecoded(msg)

	case cropConfirmMsg:
		return m, m.uploadCmd()

	case cropCancelMsg:
		if m.intake != nil {
			m.intake.CancelCrop()
		}
		m.active = viewAvatar
		return m, tea.ClearScreen

	case avatarDoneMsg:
		return m.handleAvatarDone(msg)
	}

	return m.updateActive(msg)
}

func (m Model) View() string {
	// password and menu include the logo and render directly
	switch m.active {
	case viewPassword:
		return m.password.View()
	case viewMenu:
		return m.menu.View()
	}

	var content string
	switch m.active {
	case viewLogin:
		content = m.login.View()
	case viewProfile:
		content = m.profile.View()
	case viewAvatar:
		content = m.avatar.View()
	case viewCrop:
		content = m.crop.View()
	}

	header := zstyle.RenderHeader("zclover", viewTitle(m.active), accent)
	sep := zstyle.RenderSeparator(m.width)
	footer := zstyle.RenderFooter(helpFor(m.active))

	return "\n" + header + "\n" + sep + "\n" + content + "\n" + footer + "\n"
}

// viewTitle returns the display title for each view.
func viewTitle(id viewID) string {
	switch id {
	case viewLogin:
		return "Sign In"
	case viewProfile:
		return "Profile"
	case viewAvatar:
		return "Change Avatar"
	case viewCrop:
		return "Crop"
	}
	return ""
}

// helpFor returns keybinding pairs for each view's footer.
func helpFor(id viewID) []zstyle.HelpPair {
	switch id {
	case viewLogin:
		return []zstyle.HelpPair{
			{Key: "tab", Desc: "next"},
			{Key: "enter", Desc: "sign in"},
			{Key: "ctrl+c", Desc: "quit"},
		}
	case viewProfile:
		return []zstyle.HelpPair{
			{Key: "tab", Desc: "next"},
			{Key: "ctrl+t", Desc: "switch form"},
			{Key: "ctrl+a", Desc: "avatar"},
			{Key: "enter", Desc: "save"},
			{Key: "esc", Desc: "back"},
		}
	case viewAvatar:
		return []zstyle.HelpPair{
			{Key: "enter", Desc: "open"},
			{Key: "esc", Desc: "back"},
		}
	case viewCrop:
		return []zstyle.HelpPair{
			{Key: "y", Desc: "crop and upload"},
			{Key: "c", Desc: "copy preview"},
			{Key: "n", Desc: "cancel"},
		}
	}
	return nil
}

func (m Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.active {
	case viewPassword:
		m.password, cmd = m.password.Update(msg)
	case viewLogin:
		m.login, cmd = m.login.Update(msg)
	case viewMenu:
		m.menu, cmd = m.menu.Update(msg)
	case viewProfile:
		m.profile, cmd = m.profile.Update(msg)
	case viewAvatar:
		m.avatar, cmd = m.avatar.Update(msg)
	case viewCrop:
		m.crop, cmd = m.crop.Update(msg)
	}

	return m, cmd
}

func (m Model) openVault(password []byte) (tea.Model, tea.Cmd) {
	v, err := vault.OpenDir(m.dataDir, password)
	zcrypto.Erase(password)
	if err != nil {
		m.password, _ = m.password.Update(passwordErrMsg{err: err})
		return m, nil
	}

	m.vault = v
	m.client = api.NewClient(api.Config{
		BaseURL: m.cfg.BaseURL,
		Timeout: m.cfg.RequestTimeout(),
		Logger:  m.log,
	})

	s, err := v.Session()
	if err != nil {
		if !errors.Is(err, vault.ErrNoSession) {
			m.log.Warn("load session", "err", err)
		}
		m.login = newLoginModel("")
		m.active = viewLogin
		return m, tea.Batch(m.login.Init(), tea.ClearScreen)
	}
	return m.startSession(s)
}

// startSession points the client at the session token and shows the menu
// while the profile loads.
func (m Model) startSession(s vault.Session) (tea.Model, tea.Cmd) {
	m.client.SetToken(s.Token)

	c := m.client
	m.cache = query.NewClient(m.log)
	m.cache.Register(profile.UserInfoKey, func(ctx context.Context) (any, error) {
		return c.UserInfo(ctx)
	})
	m.editor = profile.NewEditor(profile.Config{
		Remote:   c,
		Cache:    m.cache,
		Notifier: m.notify,
		Logger:   m.log,
		Timeout:  m.cfg.RequestTimeout(),
	})

	m.menu = newMenuModel(m.version, s.Email)
	m.active = viewMenu
	return m, tea.Batch(m.fetchUserCmd(), tea.ClearScreen)
}

func (m Model) loginCmd(email, password string) tea.Cmd {
	c, ctx := m.client, m.ctx
	return func() tea.Msg {
		token, err := c.Login(ctx, email, password)
		return loginResultMsg{email: email, token: token, err: err}
	}
}

func (m Model) handleLogin(msg loginResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.log.Debug("login", "email", msg.email, "err", msg.err)
		m.login, _ = m.login.Update(msg)
		return m, nil
	}

	s := vault.Session{Email: msg.email, Token: msg.token, LoggedInAt: time.Now()}
	if err := m.vault.SaveSession(s); err != nil {
		m.login, _ = m.login.Update(loginResultMsg{err: err})
		return m, nil
	}
	return m.startSession(s)
}

func (m Model) fetchUserCmd() tea.Cmd {
	if m.cache == nil {
		return nil
	}
	cache, ctx := m.cache, m.ctx
	return func() tea.Msg {
		u, err := query.Get[api.UserInfo](ctx, cache, profile.UserInfoKey)
		return userInfoMsg{cache: cache, user: u, err: err}
	}
}

func (m Model) handleUserInfo(msg userInfoMsg) (tea.Model, tea.Cmd) {
	if m.editor == nil || msg.cache != m.cache {
		m.log.Debug("drop stale profile fetch")
		return m, nil
	}
	if msg.err != nil {
		m.log.Warn("load profile", "err", msg.err)
		m.menu.flash = "load profile: " + msg.err.Error()
		return m, clearFlashAfter()
	}

	m.editor.Seed(msg.user)
	if name := m.editor.DisplayName(); name != "" {
		m.menu.user = name
	}
	if m.profileOpen {
		m.profile = m.profile.reseed(m.avatarSource())
	}
	return m, nil
}

func (m Model) logout() (tea.Model, tea.Cmd) {
	m = m.closeProfile()

	var email string
	if s, err := m.vault.Session(); err == nil {
		email = s.Email
	}
	if err := m.vault.ClearSession(); err != nil {
		m.menu.flash = "logout: " + err.Error()
		return m, clearFlashAfter()
	}

	c, ctx, log := m.client, m.ctx, m.log
	m.cache = nil
	m.editor = nil
	m.login = newLoginModel(email)
	m.active = viewLogin

	remote := func() tea.Msg {
		if err := c.Logout(ctx); err != nil {
			log.Warn("remote logout", "err", err)
		}
		return loggedOutMsg{}
	}
	return m, tea.Batch(remote, m.login.Init(), tea.ClearScreen)
}

func (m Model) navigate(view viewID) (tea.Model, tea.Cmd) {
	switch view {
	case viewMenu:
		m = m.closeProfile()
		m.menu.cursor = 0
		m.active = viewMenu
		return m, tea.ClearScreen

	case viewProfile:
		if !m.profileOpen {
			m = m.openProfile(profile.ModeInfo)
		}
		m.profile.avatar = m.avatarSource()
		m.active = viewProfile
		return m, tea.Batch(m.profile.Init(), tea.ClearScreen)

	case viewAvatar:
		if !m.profileOpen {
			m = m.openProfile(profile.ModeInfo)
		}
		m.avatar = newAvatarModel()
		m.active = viewAvatar
		return m, tea.Batch(m.avatar.Init(), tea.ClearScreen)
	}

	return m, nil
}

// openProfile starts the profile page and its intake pipeline.
func (m Model) openProfile(mode profile.Mode) Model {
	if m.intake == nil {
		m.slot = handle.NewSlot(m.handles)
		m.intake = intake.New(m.slot, m.notify, intake.WithLogger(m.log))
	}
	m.profile = newProfileModel(m.ctx, m.editor, m.queue, mode, m.avatarSource())
	m.profileOpen = true
	return m
}

// closeProfile tears the intake pipeline down, releasing the preview.
func (m Model) closeProfile() Model {
	if m.intake != nil {
		m.intake.Teardown()
	}
	m.intake = nil
	m.slot = nil
	m.avatarFile = ""
	m.profileOpen = false
	return m
}

func (m Model) avatarSource() string {
	if m.editor == nil {
		return profile.DefaultAvatar
	}
	var local handle.Handle
	if m.slot != nil {
		local = m.slot.Current()
	}
	return m.editor.AvatarSource(local)
}

func (m Model) selectAvatar(path string) (tea.Model, tea.Cmd) {
	if m.intake == nil {
		return m, nil
	}

	f, err := intake.ReadFile(path)
	if err != nil {
		m.avatar.errMsg = err.Error()
		return m, nil
	}

	if err := m.intake.Select(m.ctx, f); err != nil {
		m.log.Debug("select avatar", "file", f.Name, "err", err)
		m.avatar.input.SetValue("")
		var cmd tea.Cmd
		m.avatar.toasts, cmd = m.avatar.toasts.absorb(m.queue)
		return m, cmd
	}

	m.avatarFile = f.Name
	m.avatar.pending = true
	m.avatar.errMsg = ""
	m.decodeSeq++
	p, seq := m.intake, m.decodeSeq
	wait := func() tea.Msg {
		p.Wait()
		return decodedMsg{pipeline: p, seq: seq}
	}
	return m, tea.Batch(m.avatar.spinner.Tick, wait)
}

func (m Model) handleDecoded(msg decodedMsg) (tea.Model, tea.Cmd) {
	if m.intake == nil || msg.pipeline != m.intake || msg.seq != m.decodeSeq {
		return m, nil
	}
	m.avatar.pending = false

	if m.active != viewAvatar {
		// the user moved on; the preview is not wanted anymore
		m.intake.CancelCrop()
		var cmd tea.Cmd
		m.profile.toasts, cmd = m.profile.toasts.absorb(m.queue)
		return m, cmd
	}

	st := m.intake.State()
	if st.CropOpen && st.DecodedPreview != nil {
		m.crop = newCropModel(m.avatarFile, *st.DecodedPreview)
		m.active = viewCrop
		return m, tea.ClearScreen
	}

	if err := m.intake.Err(); err != nil {
		m.log.Debug("decode avatar", "file", m.avatarFile, "err", err)
	}
	var cmd tea.Cmd
	m.avatar.toasts, cmd = m.avatar.toasts.absorb(m.queue)
	return m, cmd
}

func (m Model) uploadCmd() tea.Cmd {
	if m.intake == nil || m.editor == nil {
		return nil
	}
	p, e, n, ctx := m.intake, m.editor, m.notify, m.ctx
	name := pngName(m.avatarFile)
	return func() tea.Msg {
		cropped, err := p.Crop(ctx, intake.CenterSquare)
		if err != nil {
			n.Error(profile.MsgAvatarFailed)
			return avatarDoneMsg{err: err}
		}
		return avatarDoneMsg{err: e.UploadAvatar(ctx, name, cropped.PNG)}
	}
}

func (m Model) handleAvatarDone(msg avatarDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.log.Debug("upload avatar", "file", m.avatarFile, "err", msg.err)
		if m.intake != nil {
			// drop the local preview so the remote avatar shows again
			m.intake.SetPreview("")
		}
	}

	m.profile.avatar = m.avatarSource()
	m.active = viewProfile

	var cmd tea.Cmd
	m.profile.toasts, cmd = m.profile.toasts.absorb(m.queue)
	cmds := []tea.Cmd{cmd, tea.ClearScreen}
	if msg.err == nil {
		cmds = append(cmds, m.fetchUserCmd())
	}
	return m, tea.Batch(cmds...)
}

func pngName(file string) string {
	if file == "" {
		return "avatar.png"
	}
	if i := strings.LastIndexByte(file, '.'); i > 0 {
		file = file[:i]
	}
	return file + ".png"
}

// Close cleans up resources. Call after the program exits.
func (m Model) Close() {
	m.closeProfile()
	if m.vault != nil {
		m.vault.Close()
	}
}
