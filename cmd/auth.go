package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lepinkainen/crate/internal/credstore"
	"github.com/lepinkainen/crate/internal/discogs"
)

// AuthCmd manages the Discogs account connection.
type AuthCmd struct {
	Login  AuthLoginCmd  `cmd:"" help:"Connect a Discogs account with OAuth"`
	Logout AuthLogoutCmd `cmd:"" help:"Forget the stored Discogs connection"`
	Status AuthStatusCmd `cmd:"" help:"Show which Discogs credentials are in use"`
}

// AuthLoginCmd runs the out-of-band OAuth connect flow.
type AuthLoginCmd struct {
	Verifier string `help:"Verifier code shown by Discogs after approving access (prompted for when omitted)"`
}

func (l *AuthLoginCmd) Run(ctx context.Context, app *App) error {
	d := app.cfg.Discogs
	if !d.OAuthConfigured() {
		return fmt.Errorf("DISCOGS_CONSUMER_KEY and DISCOGS_CONSUMER_SECRET are required to connect an account")
	}

	authorizer := discogs.NewAuthorizer(d.ConsumerKey, d.ConsumerSecret, d.CallbackURL, app.authOpts...)
	pending, err := authorizer.Begin()
	if err != nil {
		return err
	}
	fmt.Fprintf(app.out, "Open this URL in a browser and approve access:\n\n  %s\n\n", pending.URL)

	verifier := l.Verifier
	if verifier == "" {
		fmt.Fprint(app.out, "Verifier code: ")
		verifier, err = bufio.NewReader(app.in).ReadString('\n')
		if err != nil && strings.TrimSpace(verifier) == "" {
			return fmt.Errorf("failed to read verifier code: %w", err)
		}
	}

	cred, err := authorizer.Complete(pending, verifier)
	if err != nil {
		return err
	}

	app.Session(ctx).Connect(cred)
	client, err := app.Client(ctx)
	if err != nil {
		return err
	}
	username, err := client.Identity(ctx)
	if err != nil {
		return fmt.Errorf("connected but failed to verify the account: %w", err)
	}

	store, err := app.Credentials()
	if err != nil {
		return err
	}
	if err := store.Save(ctx, credstore.ServiceDiscogs, credstore.Credentials{
		Token:    cred.Token,
		Secret:   cred.TokenSecret,
		Username: username,
	}); err != nil {
		return err
	}

	fmt.Fprintf(app.out, "Connected to Discogs as %s\n", username)
	return nil
}

// AuthLogoutCmd removes the stored connection.
type AuthLogoutCmd struct{}

func (l *AuthLogoutCmd) Run(ctx context.Context, app *App) error {
	store, err := app.Credentials()
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, credstore.ServiceDiscogs); err != nil {
		return err
	}
	fmt.Fprintln(app.out, "Disconnected from Discogs")
	return nil
}

// AuthStatusCmd reports the active credential.
type AuthStatusCmd struct {
	Check bool `help:"Verify the credential against the Discogs API"`
}

func (s *AuthStatusCmd) Run(ctx context.Context, app *App) error {
	session := app.Session(ctx)
	cred := session.Current()
	if cred == nil {
		fmt.Fprintln(app.out, "Not connected: set DISCOGS_TOKEN or run `crate auth login`")
		return nil
	}

	if session.Connected() {
		store, err := app.Credentials()
		if err != nil {
			return err
		}
		creds, err := store.Load(ctx, credstore.ServiceDiscogs)
		if err != nil && !errors.Is(err, credstore.ErrNotFound) {
			return err
		}
		fmt.Fprintf(app.out, "Connected with OAuth as %s (token %s, since %s)\n",
			creds.Username, cred.Redacted(), creds.UpdatedAt.Format("2006-01-02"))
	} else {
		fmt.Fprintf(app.out, "Using personal access token %s\n", cred.Redacted())
	}

	if !s.Check {
		return nil
	}
	client, err := app.Client(ctx)
	if err != nil {
		return err
	}
	username, err := client.Identity(ctx)
	if err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}
	fmt.Fprintf(app.out, "Discogs accepted the credential for %s\n", username)
	return nil
}
