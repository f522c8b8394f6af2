package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/casabot/innkeeper/internal/config"
	"github.com/casabot/innkeeper/internal/observer"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// newLoginCmd drives the inbox login flow in a visible browser and saves the
// session cookies for the watch daemon to restore.
func newLoginCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to the inbox and save session cookies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprint(out, "Email: ")
			reader := bufio.NewReader(cmd.InOrStdin())
			email, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("read email: %w", err)
			}
			email = strings.TrimSpace(email)

			fmt.Fprint(out, "Password: ")
			pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(out)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}

			return runLogin(cmd, cfg, email, string(pwBytes))
		},
	}
}

func runLogin(cmd *cobra.Command, cfg *config.Config, email, password string) error {
	out := cmd.OutOrStdout()
	navTimeout := time.Duration(cfg.Browser.NavTimeoutSec) * time.Second

	// Visible browser on purpose: the login flow may throw a captcha or a
	// verification code at us and the operator has to get past it by hand.
	l := launcher.New().Headless(false)
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(cmd.Context())
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: cfg.Browser.InboxURL})
	if err != nil {
		return fmt.Errorf("open inbox: %w", err)
	}
	if err := page.Timeout(navTimeout).WaitLoad(); err != nil {
		return fmt.Errorf("load inbox: %w", err)
	}

	if emailEl, err := page.Timeout(navTimeout).Element(`input[type="email"]`); err == nil {
		if err := emailEl.Input(email); err != nil {
			return fmt.Errorf("fill email: %w", err)
		}
		if err := emailEl.Type(input.Enter); err != nil {
			return fmt.Errorf("submit email: %w", err)
		}
	}
	if pwEl, err := page.Timeout(navTimeout).Element(`input[type="password"]`); err == nil {
		if err := pwEl.Input(password); err != nil {
			return fmt.Errorf("fill password: %w", err)
		}
		if err := pwEl.Type(input.Enter); err != nil {
			return fmt.Errorf("submit password: %w", err)
		}
	}

	fmt.Fprintln(out, "Complete any verification in the browser, then press Enter here.")
	if _, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n'); err != nil {
		return fmt.Errorf("wait for confirmation: %w", err)
	}

	cookies, err := browser.GetCookies()
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}
	if err := observer.SaveCookies(cfg.Browser.CookiesPath, cookies); err != nil {
		return err
	}
	fmt.Fprintf(out, "session saved to %s\n", cfg.Browser.CookiesPath)
	return nil
}
