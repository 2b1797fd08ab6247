package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/jellytodo/internal/server"
	"github.com/desertthunder/jellytodo/internal/services"
	"github.com/desertthunder/jellytodo/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// AuthTodoist runs the OAuth2 authorization code flow and stores the resulting token as todoist.api_token.
//
// Starts a local HTTP server on the redirect URI, opens the browser for consent, and exchanges the code.
func (r *Runner) AuthTodoist(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	todoist := config.Todoist
	if todoist.ClientID == "" || todoist.ClientSecret == "" {
		return fmt.Errorf("%w: todoist client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	oauthConfig := services.TodoistOAuthConfig(todoist.ClientID, todoist.ClientSecret, todoist.RedirectURI)
	token, err := r.doOAuth(ctx, oauthConfig, todoist.RedirectURI)
	if err != nil {
		return err
	}

	if err := r.saveToken(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token saved to %s\n\n", r.configPath)
	r.writePlain("You can now run: jellytodo sections\n")
	return nil
}

// saveToken stores the access token in the loaded config and writes it back to disk.
func (r *Runner) saveToken(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", shared.ErrAuthFailed)
	}

	r.config.Todoist.APIToken = token.AccessToken

	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (r *Runner) doOAuth(ctx context.Context, oauthConfig *oauth2.Config, redirectURI string) (*oauth2.Token, error) {
	redirect, err := url.Parse(redirectURI)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, redirectURI)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthHandler := server.NewOAuthHandler(oauthConfig, state, redirect.Path)
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(oauthHandler)

	httpServer := &http.Server{
		Addr:              redirect.Host,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", redirect.Host)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := oauthConfig.AuthCodeURL(state)
	r.writePlain("→ Opening browser for Todoist authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}
	return result.Token, nil
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorization commands",
		Commands: []*cli.Command{
			{
				Name:   "todoist",
				Usage:  "Authorize with Todoist using OAuth2 and save the token",
				Flags:  []cli.Flag{configFlag(), logLevelFlag()},
				Action: r.AuthTodoist,
			},
		},
	}
}
