package core

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
)

const (
	MaxLoginAttempts = 3
	RetryWait        = time.Minute
	CodeEntryWait    = time.Minute
)

const (
	passwordlessUrl  = "https://www.udemy.com/join/passwordless-auth/?locale=en_US&next=https%3A%2F%2Fwww.udemy.com%2F&response_type=html"
	passwordLoginUrl = "https://www.udemy.com/join/login-popup/?locale=en_US&next=https%3A%2F%2Fwww.udemy.com%2F&response_type=html"
)

var ErrLoginFailed = fmt.Errorf("Failed to login to your account.")

type Credentials struct {
	Email    string
	Password string
	// first name shown in the page header once logged in, only used as a
	// presence check
	AccountName string
}

// CodeSource hands over the one-time code the service mails out during a
// passwordless login. The production implementation blocks on a human.
type CodeSource interface {
	Code(ctx context.Context) (string, error)
}

type readLine struct {
	line string
	err  error
}

type StdinCodeSource struct {
	Timeout time.Duration
	// defaults to os.Stdin
	In io.Reader

	start sync.Once
	lines chan readLine
}

// Code blocks until a line arrives, the timeout lapses or ctx is cancelled.
// A single reader goroutine is shared across calls so a timed-out attempt
// does not strand one blocked on the input forever; a line typed after the
// timeout is handed to the next attempt instead of being dropped.
func (s *StdinCodeSource) Code(ctx context.Context) (string, error) {
	s.start.Do(func() {
		in := s.In
		if in == nil {
			in = os.Stdin
		}
		s.lines = make(chan readLine)
		go func() {
			reader := bufio.NewReader(in)
			for {
				line, err := reader.ReadString('\n')
				s.lines <- readLine{strings.TrimSpace(line), err}
				if err != nil {
					return
				}
			}
		}()
	})

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = CodeEntryWait
	}
	fmt.Fprint(os.Stderr, "enter the login code from your email: ")

	select {
	case r := <-s.lines:
		return r.line, r.err
	case <-time.After(timeout):
		return "", fmt.Errorf("timed out waiting for the login code")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type loginState int

const (
	stateCookieProbe loginState = iota
	stateInteractive
	stateAuthenticated
	stateFailed
)

// Authenticator drives the session into a logged-in state, preferring the
// cookie jar of a previous run and falling back to interactive login with
// bounded retries.
type Authenticator struct {
	Session Session
	Cookies CookieStore
	Codes   CodeSource

	// zero values mean MaxLoginAttempts / RetryWait
	MaxAttempts int
	Cooldown    time.Duration
}

func (a Authenticator) maxAttempts() int {
	if a.MaxAttempts > 0 {
		return a.MaxAttempts
	}
	return MaxLoginAttempts
}

func (a Authenticator) cooldown() time.Duration {
	if a.Cooldown > 0 {
		return a.Cooldown
	}
	return RetryWait
}

// Login runs the state machine
// CookieProbe -> {Authenticated | InteractiveLogin} -> Authenticated | Failed.
// Errors inside one attempt never escape it, only the exhausted machine
// reports ErrLoginFailed.
func (a Authenticator) Login(ctx context.Context, creds Credentials, force bool) error {
	ctx, span := tracer.Start(ctx, "authenticator:Login")
	defer span.End()

	state := stateCookieProbe
	if force {
		state = stateInteractive
	}
	attempt := 0

	for {
		switch state {
		case stateCookieProbe:
			err := a.probeCookies(ctx, creds)
			if err == nil {
				slog.Info("restored previous session from cookie jar")
				state = stateAuthenticated
				break
			}
			slog.Info("cookie probe failed, logging in interactively", "reason", err)
			state = stateInteractive

		case stateInteractive:
			attempt++
			err := a.attempt(ctx, creds)
			if err == nil {
				state = stateAuthenticated
				break
			}
			span.RecordError(err)
			slog.Warn("login attempt failed", "attempt", attempt, "max", a.maxAttempts(), "err", err)
			if attempt >= a.maxAttempts() {
				state = stateFailed
				break
			}
			if err := sleepCtx(ctx, a.cooldown()); err != nil {
				return err
			}

		case stateAuthenticated:
			return nil

		case stateFailed:
			span.SetStatus(codes.Error, ErrLoginFailed.Error())
			return ErrLoginFailed
		}
	}
}

func (a Authenticator) probeCookies(ctx context.Context, creds Credentials) error {
	if a.Cookies == nil {
		return fmt.Errorf("no cookie store configured")
	}
	cookies, err := a.Cookies.Load()
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return fmt.Errorf("cookie jar is empty")
	}
	a.Session.SetCookies(cookies)
	return a.verify(ctx, creds.AccountName)
}

type loginStrategy struct {
	name string
	run  func(ctx context.Context, entry Page, creds Credentials) error
}

// tried in priority order within a single attempt, the service does not
// reliably offer both flows
func (a Authenticator) strategies() []loginStrategy {
	return []loginStrategy{
		{"passwordless", a.passwordless},
		{"password", a.password},
	}
}

// attempt is one iteration of the bounded retry loop. Navigation restarts
// from scratch, nothing besides the attempt counter carries over.
func (a Authenticator) attempt(ctx context.Context, creds Credentials) error {
	entry, err := a.Session.Open(ctx, passwordlessUrl)
	if err != nil {
		return err
	}

	var strategyErr error
	submitted := false
	for _, s := range a.strategies() {
		err := s.run(ctx, entry, creds)
		if err != nil {
			slog.Debug("login strategy failed", "strategy", s.name, "err", err)
			strategyErr = err
			continue
		}
		submitted = true
		break
	}
	if !submitted {
		return strategyErr
	}

	if err := a.verify(ctx, creds.AccountName); err != nil {
		return err
	}

	if a.Cookies != nil {
		if err := a.Cookies.Save(a.Session.Cookies()); err != nil {
			slog.Warn("failed to persist cookie jar", "err", err)
		}
	}
	return nil
}

func csrfToken(page Page) (string, error) {
	doc, err := page.Document()
	if err != nil {
		return "", err
	}
	token := doc.Find("input[name=csrfmiddlewaretoken]").AttrOr("value", "")
	if token == "" {
		return "", fmt.Errorf("could not find csrf token")
	}
	return token, nil
}

func (a Authenticator) passwordless(ctx context.Context, entry Page, creds Credentials) error {
	if a.Codes == nil {
		return fmt.Errorf("no code source configured")
	}
	token, err := csrfToken(entry)
	if err != nil {
		return err
	}

	otpPage, err := a.Session.Submit(ctx, passwordlessUrl, url.Values{
		"csrfmiddlewaretoken": {token},
		"email":               {creds.Email},
	})
	if err != nil {
		return err
	}
	if t, terr := csrfToken(otpPage); terr == nil {
		token = t
	}

	code, err := a.Codes.Code(ctx)
	if err != nil {
		return err
	}

	_, err = a.Session.Submit(ctx, passwordlessUrl, url.Values{
		"csrfmiddlewaretoken": {token},
		"email":               {creds.Email},
		"otp":                 {code},
	})
	return err
}

func (a Authenticator) password(ctx context.Context, entry Page, creds Credentials) error {
	if creds.Password == "" {
		return fmt.Errorf("no password configured")
	}
	page, err := a.Session.Open(ctx, passwordLoginUrl)
	if err != nil {
		return err
	}
	token, err := csrfToken(page)
	if err != nil {
		return err
	}

	_, err = a.Session.Submit(ctx, passwordLoginUrl, url.Values{
		"csrfmiddlewaretoken": {token},
		"email":               {creds.Email},
		"password":            {creds.Password},
	})
	return err
}

func (a Authenticator) verify(ctx context.Context, accountName string) error {
	page, err := a.Session.Open(ctx, HomeUrl)
	if err != nil {
		return err
	}
	if !page.TextVisible(accountName) {
		return fmt.Errorf("account name %q is not visible, not logged in", accountName)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
