package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/cobra"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/auth"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/output"
)

func NewLoginCommand() *cobra.Command {
	var (
		username string
		password string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with username and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			username = strings.TrimSpace(username)
			if username == "" {
				return apierrors.Validation("username is required")
			}
			if password == "" {
				reader := rt.Passwords()
				if !reader.IsInteractive() {
					return apierrors.Validation("password is required; pass --password when not running in a terminal")
				}
				password, err = reader.ReadPassword(cmd.Context(), "Password: ")
				if err != nil {
					return err
				}
				if password == "" {
					return apierrors.Validation("password must not be empty")
				}
			}

			apiClient, manager, err := buildClient(rt)
			if err != nil {
				return err
			}
			session, err := apiClient.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := manager.Login(session); err != nil {
				return fmt.Errorf("failed to store session: %w", err)
			}
			rt.Logger().Debugw("Stored session", "userID", session.UserID, "expiresAt", session.ExpiresAt)

			result := struct {
				UserID    string    `json:"user_id" yaml:"userId"`
				ExpiresAt time.Time `json:"expires_at" yaml:"expiresAt"`
			}{session.UserID, session.ExpiresAt}
			return rt.Render(result, func(w io.Writer) {
				_, _ = fmt.Fprintln(w, output.Success("Logged in as "+username))
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			manager := auth.NewManager(rt.Store(), rt.Logger())
			if err := manager.Logout(); err != nil {
				return fmt.Errorf("failed to remove session: %w", err)
			}
			rt.Printf("Logged out\n")
			return nil
		},
	}
}

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect the stored session",
	}
	cmd.AddCommand(newAuthTokenCommand(), newAuthStatusCommand())
	return cmd
}

func newAuthTokenCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing it when needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			_, manager, err := buildClient(rt)
			if err != nil {
				return err
			}
			token, err := manager.AccessToken(cmd.Context())
			if err != nil {
				return err
			}
			if !asJSON {
				_, _ = fmt.Fprintln(rt.Writer(), token)
				return nil
			}
			session, err := manager.Session()
			if err != nil {
				return err
			}
			result := struct {
				Token     string    `json:"token"`
				ExpiresAt time.Time `json:"expires_at"`
			}{Token: token}
			if session != nil {
				result.ExpiresAt = session.ExpiresAt
			}
			return output.WriteObject(rt.Writer(), output.FormatJSON, result)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the token and its expiry as JSON")
	return cmd
}

type authStatus struct {
	UserID                string    `json:"user_id" yaml:"userId"`
	Subject               string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at" yaml:"accessTokenExpiresAt"`
	AccessTokenExpired    bool      `json:"access_token_expired" yaml:"accessTokenExpired"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at" yaml:"refreshTokenExpiresAt"`
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who is logged in and when the session expires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			session, err := rt.Store().Load()
			if err != nil {
				return err
			}
			if session == nil {
				return fmt.Errorf("not logged in: %w", apierrors.ErrAuthenticationExpired)
			}
			status := sessionStatus(session, time.Now())
			return rt.Render(status, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Logged in as %s\n", displayUser(status))
				_, _ = fmt.Fprintf(w, "Access token expires: %s\n", status.AccessTokenExpiresAt.Local().Format(time.RFC1123))
				if status.AccessTokenExpired {
					_, _ = fmt.Fprintln(w, output.Hint("The access token has expired and will be refreshed on the next request"))
				}
				_, _ = fmt.Fprintf(w, "Session expires: %s\n", status.RefreshTokenExpiresAt.Local().Format(time.RFC1123))
			})
		},
	}
}

// sessionStatus reads the subject from the access token claims without
// verifying the signature. Opaque tokens leave the subject empty.
func sessionStatus(s *auth.Session, now time.Time) authStatus {
	status := authStatus{
		UserID:                s.UserID,
		AccessTokenExpiresAt:  s.ExpiresAt,
		RefreshTokenExpiresAt: s.RefreshExpiresAt,
	}
	claims := jwt.MapClaims{}
	parser := jwt.Parser{}
	if _, _, err := parser.ParseUnverified(s.AccessToken, claims); err == nil {
		if sub, ok := claims["sub"].(string); ok {
			status.Subject = sub
		}
		if status.AccessTokenExpiresAt.IsZero() {
			if exp, ok := claims["exp"].(float64); ok {
				status.AccessTokenExpiresAt = time.Unix(int64(exp), 0).UTC()
			}
		}
	}
	status.AccessTokenExpired = !status.AccessTokenExpiresAt.After(now)
	return status
}

func displayUser(s authStatus) string {
	switch {
	case s.Subject != "" && s.Subject != s.UserID:
		return fmt.Sprintf("%s (%s)", s.UserID, s.Subject)
	case s.UserID != "":
		return s.UserID
	case s.Subject != "":
		return s.Subject
	default:
		return "unknown user"
	}
}
