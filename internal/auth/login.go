package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// LoginOptions controls how the authorization code is obtained.
type LoginOptions struct {
	// NoLocalServer asks the user to paste the code (or the whole redirect
	// URL) instead of catching the redirect on a loopback listener.
	NoLocalServer bool
	// Out receives the consent URL and prompts.
	Out io.Writer
	// In is read for the pasted code when NoLocalServer is set.
	In io.Reader
}

// Login runs the installed-app consent flow and stores the resulting
// credentials at path.
func Login(ctx context.Context, config *oauth2.Config, path string, opts LoginOptions) error {
	state := uuid.NewString()

	var (
		code string
		err  error
	)
	if opts.NoLocalServer {
		code, err = pasteCode(config, state, opts)
	} else {
		code, err = loopbackCode(ctx, config, state, opts)
	}
	if err != nil {
		return err
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	if token.RefreshToken == "" {
		return errors.New("no refresh token returned; revoke crosslist's access in your Google account and log in again")
	}
	return Save(path, config, token)
}

func authURL(config *oauth2.Config, state string) string {
	return config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func pasteCode(config *oauth2.Config, state string, opts LoginOptions) (string, error) {
	config.RedirectURL = "http://127.0.0.1"
	fmt.Fprintf(opts.Out, "Open this URL in a browser and authorize crosslist:\n\n  %s\n\n", authURL(config, state))
	fmt.Fprint(opts.Out, "Paste the code or the URL you were redirected to: ")

	line, err := bufio.NewReader(opts.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read code: %w", err)
	}
	return codeFromInput(strings.TrimSpace(line), state)
}

// codeFromInput accepts a bare code or a redirect URL carrying code and state.
func codeFromInput(input, state string) (string, error) {
	if input == "" {
		return "", errors.New("no authorization code entered")
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("authorization denied: %s", e)
	}
	if s := q.Get("state"); s != "" && s != state {
		return "", errors.New("state mismatch in redirect URL")
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirect URL has no code")
	}
	return code, nil
}

func loopbackCode(ctx context.Context, config *oauth2.Config, state string, opts LoginOptions) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen for redirect: %w", err)
	}
	config.RedirectURL = "http://" + ln.Addr().String() + "/"

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		code, err := codeFromInput("http://"+r.Host+r.URL.String(), state)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "crosslist is authorized. You may close this window.")
		}
		select {
		case done <- result{code, err}:
		default:
		}
	})}
	go srv.Serve(ln)
	defer srv.Close()

	fmt.Fprintf(opts.Out, "Open this URL in a browser and authorize crosslist:\n\n  %s\n\n", authURL(config, state))
	fmt.Fprintln(opts.Out, "Waiting for authorization...")

	select {
	case r := <-done:
		return r.code, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
