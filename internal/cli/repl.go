package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/aussiebroadwan/fintrack/pkg/authsdk"
)

var errQuit = errors.New("quit")

type command struct {
	usage string
	help  string
	run   func(a *App, ctx context.Context, args []string) error
}

func commandTable() map[string]command {
	return map[string]command{
		"help":     {"help", "show this list", (*App).cmdHelp},
		"register": {"register", "create a password account", (*App).cmdRegister},
		"login":    {"login [remember]", "sign in with email and password", (*App).cmdLogin},
		"provider": {"provider <name> [remember]", "sign in with google, github, apple, microsoft, passkey or wallet", (*App).cmdProvider},
		"verify":   {"verify [app|recovery]", "enter the second factor for a pending sign-in", (*App).cmdVerify},
		"cancel":   {"cancel", "abandon a pending sign-in", (*App).cmdCancel},
		"whoami":   {"whoami", "show the signed-in user", (*App).cmdWhoami},
		"profile":  {"profile field=value...", "update name or profile fields", (*App).cmdProfile},
		"view":     {"view <name> [key=value...]", "show a finance view: " + strings.Join(authsdk.Views, ", "), (*App).cmdView},
		"2fa":      {"2fa status|setup|enable|disable|recovery-codes", "manage two-factor authentication", (*App).cmdTwoFactor},
		"refresh":  {"refresh", "rotate the session tokens", (*App).cmdRefresh},
		"logout":   {"logout", "sign out", (*App).cmdLogout},
		"exit":     {"exit", "leave", func(*App, context.Context, []string) error { return errQuit }},
	}
}

// Run reads commands until exit or end of input. Command errors are
// printed and the loop carries on.
func (a *App) Run(ctx context.Context) {
	a.printf("FinTrack. Type help for commands.\n")
	for {
		a.printf("fintrack (%s)> ", a.status())
		line, err := a.in.ReadString('\n')
		if err != nil && line == "" {
			a.printf("\n")
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := strings.ToLower(fields[0])
		if name == "quit" {
			name = "exit"
		}

		cmd, ok := a.commands[name]
		if !ok {
			a.printf("unknown command %q\n", fields[0])
			continue
		}
		if err := cmd.run(a, ctx, fields[1:]); err != nil {
			if errors.Is(err, errQuit) {
				a.printf("Bye!\n")
				return
			}
			a.printf("error: %s\n", describe(err))
		}
	}
}

// describe turns API errors into their human description.
func describe(err error) string {
	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Description
		if msg == "" {
			msg = apiErr.Code
		}
		keys := make([]string, 0, len(apiErr.Fields))
		for k := range apiErr.Fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			msg += fmt.Sprintf("\n  %s: %s", k, apiErr.Fields[k])
		}
		return msg
	}
	return err.Error()
}

func (a *App) cmdHelp(context.Context, []string) error {
	names := make([]string, 0, len(a.commands))
	for n := range a.commands {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		a.printf("  %-48s %s\n", a.commands[n].usage, a.commands[n].help)
	}
	return nil
}

func (a *App) cmdRegister(ctx context.Context, _ []string) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	name, err := a.prompt("Name")
	if err != nil {
		return err
	}
	password, err := a.readSecret("Password")
	if err != nil {
		return err
	}
	confirm, err := a.readSecret("Confirm password")
	if err != nil {
		return err
	}

	u, err := a.client.Register(ctx, authsdk.RegisterRequest{
		Email:           email,
		Name:            name,
		Password:        password,
		ConfirmPassword: confirm,
	})
	if err != nil {
		return err
	}
	a.printf("Registered %s. Use login to sign in.\n", u.Email)
	return nil
}

func (a *App) cmdLogin(ctx context.Context, args []string) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	password, err := a.readSecret("Password")
	if err != nil {
		return err
	}

	res, err := a.state.LoginWithPassword(ctx, email, password, remember(args))
	if err != nil {
		return err
	}
	a.reportLogin(res)
	return nil
}

func (a *App) cmdProvider(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.usage("provider")
	}
	res, err := a.state.LoginWithProvider(ctx, args[0], remember(args[1:]))
	if err != nil {
		return err
	}
	a.reportLogin(res)
	return nil
}

func remember(args []string) bool {
	return slices.Contains(args, "remember") || slices.Contains(args, "--remember")
}

func (a *App) reportLogin(res authsdk.LoginResult) {
	if res.RequiresTwoFactor {
		u, _ := a.state.PendingUser()
		a.printf("Two-factor authentication is on for %s. Use verify to continue.\n", u.Email)
		return
	}
	u, _ := a.state.User()
	a.printf("Signed in as %s (%s).\n", u.Name, u.Email)
}

func (a *App) cmdVerify(ctx context.Context, args []string) error {
	method := authsdk.MethodApp
	if len(args) > 0 {
		method = args[0]
	}
	label := "Authenticator code"
	if method == authsdk.MethodRecovery {
		label = "Recovery code"
	}
	code, err := a.prompt(label)
	if err != nil {
		return err
	}

	ok, err := a.state.VerifyTwoFactor(ctx, method, code)
	if err != nil {
		if !a.state.RequiresTwoFactor() {
			return fmt.Errorf("%s; sign in again", describe(err))
		}
		return err
	}
	if !ok {
		return errors.New("verification failed")
	}
	u, _ := a.state.User()
	a.printf("Signed in as %s (%s).\n", u.Name, u.Email)
	return nil
}

func (a *App) cmdCancel(ctx context.Context, _ []string) error {
	a.state.CancelTwoFactor(ctx)
	a.printf("Sign-in cancelled.\n")
	return nil
}

func (a *App) cmdWhoami(context.Context, []string) error {
	u, ok := a.state.User()
	if !ok {
		return authsdk.ErrNotAuthenticated
	}
	a.printf("%s <%s>\n  provider: %s\n  two-factor: %t\n", u.Name, u.Email, u.Provider, u.TwoFactorEnabled)
	for _, f := range []struct{ k, v string }{
		{"job title", u.Profile.JobTitle},
		{"company", u.Profile.Company},
		{"location", u.Profile.Location},
		{"phone", u.Profile.Phone},
		{"currency", u.Profile.Currency},
		{"timezone", u.Profile.Timezone},
		{"bio", u.Profile.Bio},
	} {
		if f.v != "" {
			a.printf("  %s: %s\n", f.k, f.v)
		}
	}
	return nil
}

func (a *App) cmdProfile(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.usage("profile")
	}

	var patch authsdk.ProfilePatch
	targets := map[string]**string{
		"name":      &patch.Name,
		"job_title": &patch.JobTitle,
		"company":   &patch.Company,
		"bio":       &patch.Bio,
		"location":  &patch.Location,
		"phone":     &patch.Phone,
		"currency":  &patch.Currency,
		"timezone":  &patch.Timezone,
	}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		dst, known := targets[k]
		if !ok || !known {
			return fmt.Errorf("unknown field %q", k)
		}
		*dst = &v
	}

	u, err := a.state.UpdateUser(ctx, patch)
	if err != nil {
		return err
	}
	a.printf("Profile updated for %s.\n", u.Email)
	return nil
}

func (a *App) cmdView(ctx context.Context, args []string) error {
	if len(args) == 0 || !slices.Contains(authsdk.Views, args[0]) {
		return a.usage("view")
	}
	q := url.Values{}
	for _, arg := range args[1:] {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected key=value, got %q", arg)
		}
		q.Add(k, v)
	}

	var raw json.RawMessage
	err := a.authed(ctx, func(token string) error {
		var err error
		raw, err = a.client.View(ctx, token, args[0], q)
		return err
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	a.printf("%s\n", out)
	return nil
}

func (a *App) cmdTwoFactor(ctx context.Context, args []string) error {
	sub := "status"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "status":
		return a.authed(ctx, func(token string) error {
			st, err := a.client.TwoFactorStatus(ctx, token)
			if err != nil {
				return err
			}
			a.printf("Two-factor: %t, recovery codes left: %d\n", st.Enabled, st.RecoveryCodesLeft)
			return nil
		})

	case "setup":
		return a.authed(ctx, func(token string) error {
			setup, err := a.client.SetupTwoFactor(ctx, token)
			if err != nil {
				return err
			}
			a.printf("Add this key to your authenticator app:\n  %s\n  %s\nThen run: 2fa enable\n", setup.Secret, setup.OTPAuthURL)
			return nil
		})

	case "enable", "disable", "recovery-codes":
		code, err := a.prompt("Authenticator code")
		if err != nil {
			return err
		}
		err = a.authed(ctx, func(token string) error {
			var codes []string
			switch sub {
			case "enable":
				st, err := a.client.EnableTwoFactor(ctx, token, code)
				if err != nil {
					return err
				}
				codes = st.RecoveryCodes
				a.printf("Two-factor enabled.\n")
			case "disable":
				if _, err := a.client.DisableTwoFactor(ctx, token, code); err != nil {
					return err
				}
				a.printf("Two-factor disabled.\n")
			default:
				rc, err := a.client.RegenerateRecoveryCodes(ctx, token, code)
				if err != nil {
					return err
				}
				codes = rc.Codes
			}
			if len(codes) > 0 {
				a.printf("Recovery codes (shown once):\n")
				for _, c := range codes {
					a.printf("  %s\n", c)
				}
			}
			return nil
		})
		if err != nil || sub == "recovery-codes" {
			return err
		}
		if _, err := a.state.ReloadUser(ctx); err != nil {
			a.logger.WarnContext(ctx, "could not reload user after two-factor change", "error", err)
		}
		return nil
	}
	return a.usage("2fa")
}

func (a *App) cmdRefresh(ctx context.Context, _ []string) error {
	if err := a.state.Refresh(ctx); err != nil {
		return err
	}
	a.printf("Session refreshed.\n")
	return nil
}

func (a *App) cmdLogout(ctx context.Context, _ []string) error {
	a.state.Logout(ctx)
	a.printf("Signed out.\n")
	return nil
}

// authed runs fn with the access token, refreshing once if the server says
// it has expired.
func (a *App) authed(ctx context.Context, fn func(token string) error) error {
	if !a.state.IsAuthenticated() {
		return authsdk.ErrNotAuthenticated
	}
	err := fn(a.state.Token())
	if !errors.Is(err, authsdk.ErrUnauthorized) {
		return err
	}
	if rerr := a.state.Refresh(ctx); rerr != nil {
		return err
	}
	return fn(a.state.Token())
}

func (a *App) usage(name string) error {
	return errors.New("usage: " + a.commands[name].usage)
}
