// Package cli implements zclover's command-line subcommands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/zarlcorp/core/pkg/zcrypto"
	"github.com/zarlcorp/zclover/internal/api"
	"github.com/zarlcorp/zclover/internal/config"
	"github.com/zarlcorp/zclover/internal/endpoint"
	"github.com/zarlcorp/zclover/internal/handle"
	"github.com/zarlcorp/zclover/internal/intake"
	"github.com/zarlcorp/zclover/internal/notify"
	"github.com/zarlcorp/zclover/internal/profile"
	"github.com/zarlcorp/zclover/internal/query"
	"github.com/zarlcorp/zclover/internal/vault"
	"golang.org/x/term"
)

// DataDir returns the default data directory for zclover.
func DataDir() string {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return d + "/zclover"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zclover"
	}
	return home + "/.local/share/zclover"
}

// ReadPassword prompts on w and reads a line from the terminal without
// echo.
func ReadPassword(prompt string, w io.Writer) ([]byte, error) {
	fmt.Fprint(w, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return b, nil
}

// ReadNewPassword prompts for a new master password with confirmation.
func ReadNewPassword(w io.Writer) ([]byte, error) {
	pass, err := ReadPassword("master password: ", w)
	if err != nil {
		return nil, err
	}
	if err := vault.CheckNewPassword(pass); err != nil {
		zcrypto.Erase(pass)
		return nil, err
	}
	confirm, err := ReadPassword("confirm password: ", w)
	defer zcrypto.Erase(confirm)
	if err != nil {
		zcrypto.Erase(pass)
		return nil, err
	}
	if string(pass) != string(confirm) {
		zcrypto.Erase(pass)
		return nil, errors.New("passwords do not match")
	}
	return pass, nil
}

// OpenVault prompts for the master password and unlocks the vault in dir.
func OpenVault(dir string) (*vault.Vault, error) {
	var pass []byte
	var err error
	if vault.IsFirstRun(dir) {
		pass, err = ReadNewPassword(os.Stderr)
	} else {
		pass, err = ReadPassword("master password: ", os.Stderr)
	}
	if err != nil {
		return nil, err
	}
	defer zcrypto.Erase(pass)

	return vault.OpenDir(dir, pass)
}

// Env is what every command runs against.
type Env struct {
	Config *config.Config
	Vault  *vault.Vault
	Out    io.Writer
	Err    io.Writer
	Logger *slog.Logger
}

// Client returns an API client carrying the stored session token.
func (e Env) Client() (*api.Client, error) {
	c := api.NewClient(api.Config{
		BaseURL: e.Config.BaseURL,
		Timeout: e.Config.RequestTimeout(),
		Logger:  e.Logger,
	})
	if e.Vault == nil {
		return c, nil
	}
	s, err := e.Vault.Session()
	if err != nil {
		return nil, err
	}
	c.SetToken(s.Token)
	return c, nil
}

// CmdEndpoints prints every endpoint URL grouped by domain.
func CmdEndpoints(w io.Writer, cfg *config.Config, args []string) error {
	reg := endpoint.New(cfg.BaseURL)

	if hasFlag(args, "--json") {
		out := make(map[string]string)
		for _, k := range endpoint.Keys() {
			out[string(k)] = reg.URL(k)
		}
		return printJSON(w, out)
	}

	var last endpoint.Domain
	for _, k := range endpoint.Keys() {
		d := endpoint.DomainOf(k)
		if d != last {
			fmt.Fprintf(w, "%s\n", d)
			last = d
		}
		fmt.Fprintf(w, "  %-28s %s\n", k, reg.URL(k))
	}
	return nil
}

// CmdLogin exchanges credentials for a token and stores the session.
func CmdLogin(ctx context.Context, env Env, email string, password []byte) error {
	c := api.NewClient(api.Config{
		BaseURL: env.Config.BaseURL,
		Timeout: env.Config.RequestTimeout(),
		Logger:  env.Logger,
	})

	token, err := c.Login(ctx, email, string(password))
	if err != nil {
		return err
	}
	err = env.Vault.SaveSession(vault.Session{
		Email:      email,
		Token:      token,
		LoggedInAt: time.Now(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "logged in as %s\n", email)
	return nil
}

// CmdLogout ends the session remotely and forgets it locally. A remote
// failure still clears the local session.
func CmdLogout(ctx context.Context, env Env) error {
	c, err := env.Client()
	if errors.Is(err, vault.ErrNoSession) {
		fmt.Fprintln(env.Out, "not logged in")
		return nil
	}
	if err != nil {
		return err
	}

	if err := c.Logout(ctx); err != nil {
		env.Logger.Warn("remote logout", "err", err)
	}
	if err := env.Vault.ClearSession(); err != nil {
		return err
	}
	fmt.Fprintln(env.Out, "logged out")
	return nil
}

// CmdWhoami prints the signed-in user's profile.
func CmdWhoami(ctx context.Context, env Env, args []string) error {
	c, err := env.Client()
	if err != nil {
		return err
	}
	u, err := c.UserInfo(ctx)
	if err != nil {
		return err
	}

	if hasFlag(args, "--json") {
		return printJSON(env.Out, u)
	}
	printUser(env.Out, u)
	return nil
}

// CmdAvatar runs path through the intake pipeline, crops it to a centered
// square and uploads it as the new avatar.
func CmdAvatar(ctx context.Context, env Env, path string) error {
	c, err := env.Client()
	if err != nil {
		return err
	}

	f, err := intake.ReadFile(path)
	if err != nil {
		return err
	}

	n := notify.Writer{W: env.Err}
	cache := query.NewClient(env.Logger)
	cache.Register(profile.UserInfoKey, func(ctx context.Context) (any, error) {
		return c.UserInfo(ctx)
	})
	editor := profile.NewEditor(profile.Config{
		Remote:   c,
		Cache:    cache,
		Notifier: n,
		Logger:   env.Logger,
		Timeout:  env.Config.RequestTimeout(),
	})

	p := intake.New(handle.NewSlot(handle.NewRegistry()), n, intake.WithLogger(env.Logger))
	defer p.Teardown()

	if err := p.Select(ctx, f); err != nil {
		return err
	}
	p.Wait()
	if err := p.Err(); err != nil {
		return err
	}

	cropped, err := p.Crop(ctx, intake.CenterSquare)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(f.Name, fileExt(f.Name)) + ".png"
	return editor.UploadAvatar(ctx, name, cropped.PNG)
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}

func printUser(w io.Writer, u api.UserInfo) {
	fmt.Fprintf(w, "  id:       %s\n", u.UserID)
	fmt.Fprintf(w, "  name:     %s %s\n", u.Firstname, u.Lastname)
	fmt.Fprintf(w, "  email:    %s\n", u.Email)
	fmt.Fprintf(w, "  phone:    %s\n", u.PhoneNo)
	fmt.Fprintf(w, "  dob:      %s\n", u.DayOfBirth)
	fmt.Fprintf(w, "  gender:   %s\n", profile.Gender(u.Gender).Label())
	fmt.Fprintf(w, "  avatar:   %s\n", u.Avatar)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if strings.EqualFold(a, flag) {
			return true
		}
	}
	return false
}
