package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/database"
	"github.com/matthew-heyner/family-finance/internal/models"
)

type userOptions struct {
	Name     string
	Email    string
	Password string
	Admin    bool
	Family   string
}

func userCmd() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var opts userOptions
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account, optionally founding a family",
		Example: `  famfin user create --email ana@example.com --name Ana --family "Silva household"
  echo secret123 | famfin user create --email bob@example.com --name Bob`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(false)
			if err != nil {
				return err
			}
			db, err := database.Init(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)
			if err := database.Prepare(db); err != nil {
				return err
			}
			svc := auth.NewService(db, auth.OptionsFromConfig(cfg), nil, logger)
			return createUser(cmd.Context(), db, svc, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	create.Flags().StringVar(&opts.Email, "email", "", "email address (required)")
	create.Flags().StringVar(&opts.Name, "name", "", "display name (required)")
	create.Flags().StringVar(&opts.Password, "password", "", "password, prompted for when omitted")
	create.Flags().BoolVar(&opts.Admin, "admin", false, "give the account the admin role")
	create.Flags().StringVar(&opts.Family, "family", "", "found a family with this name and make the account its admin")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("name")

	user.AddCommand(create)
	return user
}

func createUser(ctx context.Context, db *gorm.DB, svc *auth.Service, opts userOptions, stdin io.Reader, stdout io.Writer) error {
	password := opts.Password
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password cannot be empty")
	}

	role := models.RoleUser
	if opts.Admin {
		role = models.RoleAdmin
	}
	user, err := svc.CreateUser(ctx, auth.CreateUserInput{
		Name:     opts.Name,
		Email:    opts.Email,
		Password: password,
		Role:     role,
	})
	if err != nil {
		return err
	}

	if name := strings.TrimSpace(opts.Family); name != "" {
		var family *models.Family
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			family, err = auth.FoundFamily(tx, user, name)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "User %s created with ID %d, admin of family %q (ID %d)\n", user.Email, user.ID, family.Name, family.ID)
		return nil
	}
	fmt.Fprintf(stdout, "User %s created with ID %d\n", user.Email, user.ID)
	return nil
}

// readPassword reads without echo from a terminal, or one line otherwise.
func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
