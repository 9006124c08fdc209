package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/pkg/timeutil"
	"alcyxob/fitness-coach/internal/repository"

	"github.com/spf13/cobra"
)

const commandTimeout = 2 * time.Minute

func newSweepCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-premium",
		Short: "Downgrade every premium membership whose expiry has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			return opts.withBackend(ctx, func(b *Backend) error {
				n, err := b.SweepExpired(ctx)
				if err != nil {
					return fmt.Errorf("sweep failed: %w", err)
				}
				fmt.Fprintf(opts.out, "Downgraded %d expired membership(s)\n", n)
				return nil
			})
		},
	}
}

func newIndexesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create the collection indexes the server relies on",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			return opts.withBackend(ctx, func(b *Backend) error {
				if err := b.EnsureIndexes(ctx); err != nil {
					return fmt.Errorf("failed to ensure indexes: %w", err)
				}
				fmt.Fprintln(opts.out, "Indexes are up to date")
				return nil
			})
		},
	}
}

func parseRole(s string) (domain.Role, error) {
	switch r := domain.Role(s); r {
	case domain.RoleFree, domain.RolePremium, domain.RoleTrainer, domain.RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q (want free, premium, PT or admin)", s)
}

func newSetRoleCmd(opts *options) *cobra.Command {
	var months int

	cmd := &cobra.Command{
		Use:   "set-role <email> <role>",
		Short: "Change a user's role",
		Long: `Change a user's role. Granting premium requires --months; the
membership then runs from now.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := parseRole(args[1])
			if err != nil {
				return err
			}
			if role == domain.RolePremium && months < 1 {
				return errors.New("--months must be at least 1 when granting premium")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			return opts.withBackend(ctx, func(b *Backend) error {
				u, err := lookupUser(ctx, b, args[0])
				if err != nil {
					return err
				}
				if role == domain.RolePremium {
					expireAt := timeutil.AddMonths(b.Clock.Now(), months)
					if err := b.Users.SetPremium(ctx, u.ID, expireAt); err != nil {
						return fmt.Errorf("failed to grant premium: %w", err)
					}
					fmt.Fprintf(opts.out, "%s is premium until %s\n", u.Email, expireAt.Format(time.RFC3339))
					return nil
				}
				if err := b.Users.SetRole(ctx, u.ID, role); err != nil {
					return fmt.Errorf("failed to set role: %w", err)
				}
				fmt.Fprintf(opts.out, "%s is now %s\n", u.Email, role)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&months, "months", 0, "premium duration in months")
	return cmd
}

func newUserCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect users",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <email>",
		Short: "Show a user's account and membership",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			return opts.withBackend(ctx, func(b *Backend) error {
				u, err := lookupUser(ctx, b, args[0])
				if err != nil {
					return err
				}
				v := newUserView(u)
				if opts.outputFormat != "table" {
					return opts.print(v)
				}
				t := NewTable(opts.out, "ID", "EMAIL", "NAME", "ROLE", "PREMIUM UNTIL", "TRAINER")
				t.AddRow(v.ID, v.Email, v.Name, v.Role, v.PremiumUntil, v.TrainerID)
				t.Render()
				return nil
			})
		},
	})
	return cmd
}

// userView is the printable account. It leaves out the password hash.
type userView struct {
	ID           string `json:"id" yaml:"id"`
	Email        string `json:"email" yaml:"email"`
	Name         string `json:"name" yaml:"name"`
	Role         string `json:"role" yaml:"role"`
	PremiumUntil string `json:"premiumUntil" yaml:"premiumUntil"`
	TrainerID    string `json:"trainerId" yaml:"trainerId"`
}

func newUserView(u *domain.User) userView {
	v := userView{ID: u.ID.Hex(), Email: u.Email, Name: u.Name, Role: string(u.Role), PremiumUntil: "-", TrainerID: "-"}
	if u.PremiumExpireDate != nil {
		v.PremiumUntil = u.PremiumExpireDate.Format(time.RFC3339)
	}
	if u.TrainerID != nil {
		v.TrainerID = u.TrainerID.Hex()
	}
	return v
}

func lookupUser(ctx context.Context, b *Backend, email string) (*domain.User, error) {
	u, err := b.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("no user with email %q", email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return u, nil
}
