package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindhaven/carekit/app"
	"github.com/mindhaven/carekit/session"
)

func newLoginCmd(rt *runtime) *cobra.Command {
	var phone string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Send a one-time password to a phone number",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.API().Auth.SendOTP(ctx, phone)
			})
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number in E.164 form, e.g. +919876543210")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

// signedIn is what verify prints. The token stays in the session store.
type signedIn struct {
	User     *session.Profile `json:"user"`
	IssuedAt time.Time        `json:"issued_at"`
}

func newVerifyCmd(rt *runtime) *cobra.Command {
	var phone, otp string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Exchange the one-time password for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				sess, err := a.API().Auth.VerifyOTP(ctx, phone, otp)
				if err != nil {
					return nil, err
				}
				return signedIn{User: sess.User, IssuedAt: sess.IssuedAt}, nil
			})
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number the OTP was sent to")
	cmd.Flags().StringVar(&otp, "otp", "", "Six digit one-time password")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("otp")
	return cmd
}

func newLogoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if err := a.API().Auth.Logout(ctx); err != nil {
					return nil, err
				}
				return map[string]bool{"signed_out": true}, nil
			})
		},
	}
}

func newWhoamiCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.API().Auth.CurrentUser(ctx)
			})
		},
	}
}
