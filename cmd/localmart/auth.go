// AngelaMos | 2026
// auth.go

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/localmart/localmart/internal/auth"
	"github.com/localmart/localmart/internal/user"
)

const passwordEnv = "LOCALMART_PASSWORD"

func password(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("password required (--password or %s)", passwordEnv)
}

func loginCmd(a *app) *cobra.Command {
	var pw string
	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Log in with email and password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := password(pw)
			if err != nil {
				return err
			}
			s, err := a.sessions.Login(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			a.printf("Logged in as %s\n", s.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pw, "password", "p", "", "account password")
	return cmd
}

func signupCmd(a *app) *cobra.Command {
	var req auth.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup EMAIL",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := password(req.Password)
			if err != nil {
				return err
			}
			req.Email = args[0]
			req.Password = p
			s, err := a.sessions.Signup(cmd.Context(), req)
			if err != nil {
				return err
			}
			a.printf("Welcome, %s\n", s.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "account password")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	return cmd
}

func magicLinkCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "magic-link",
		Short: "Log in with a one-time email link",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "request EMAIL",
			Short: "Email a sign-in link (logs out any current session)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.sessions.RequestMagicLink(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.printf("Check %s for a sign-in link, then run `localmart magic-link verify TOKEN`\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "verify TOKEN",
			Short: "Complete sign-in with the token from the link",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.sessions.CompleteMagicLink(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				a.printf("Logged in as %s\n", s.Email)
				return nil
			},
		},
	)
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.sessions.Logout(cmd.Context()); err != nil {
				return err
			}
			a.printf("Logged out\n")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the saved session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := a.sessions.Load()
			if err != nil {
				return err
			}
			roles := "-"
			if len(s.Roles) > 0 {
				roles = strings.Join(s.Roles, ",")
			}
			a.printf("%s <%s>\nid: %s\nroles: %s\n", s.Name, s.Email, s.ID, roles)
			return nil
		},
	}
}

func profileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			p, err := a.api.Profile(cmd.Context(), token)
			if err != nil {
				return err
			}
			printProfile(a, p)
			return nil
		},
	}

	var (
		firstName, lastName, phone string
		street1, street2, city, st string
		zip                        string
	)
	update := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields; a full address is geocoded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			var req user.UpdateProfileRequest
			set := func(name string, dst **string, v string) {
				if cmd.Flags().Changed(name) {
					*dst = &v
				}
			}
			set("first-name", &req.FirstName, firstName)
			set("last-name", &req.LastName, lastName)
			set("phone", &req.PhoneNumber, phone)
			set("street-1", &req.Street1, street1)
			set("street-2", &req.Street2, street2)
			set("city", &req.City, city)
			set("state", &req.State, st)
			set("zip", &req.Zip, zip)

			p, err := a.api.UpdateProfile(cmd.Context(), token, req)
			if err != nil {
				return err
			}
			printProfile(a, p)
			return nil
		},
	}
	f := update.Flags()
	f.StringVar(&firstName, "first-name", "", "")
	f.StringVar(&lastName, "last-name", "", "")
	f.StringVar(&phone, "phone", "", "")
	f.StringVar(&street1, "street-1", "", "")
	f.StringVar(&street2, "street-2", "", "")
	f.StringVar(&city, "city", "", "")
	f.StringVar(&st, "state", "", "")
	f.StringVar(&zip, "zip", "", "")

	cmd.AddCommand(update)
	return cmd
}

func printProfile(a *app, p *user.ProfileResponse) {
	a.printf("%s %s <%s>\n", p.FirstName, p.LastName, p.Email)
	if p.PhoneNumber != "" {
		a.printf("phone: %s\n", p.PhoneNumber)
	}
	if p.Street1 != "" {
		a.printf("address: %s", p.Street1)
		if p.Street2 != "" {
			a.printf(", %s", p.Street2)
		}
		a.printf(", %s, %s %s\n", p.City, p.State, p.Zip)
	}
	if p.Latitude != nil && p.Longitude != nil {
		a.printf("location: %.5f,%.5f\n", *p.Latitude, *p.Longitude)
	}
}
