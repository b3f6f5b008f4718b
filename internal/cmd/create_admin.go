package cmd

import (
	"errors"
	"fmt"

	"techcart/internal/audit"
	"techcart/internal/database"
	"techcart/internal/domain"
	"techcart/internal/middleware"
	"techcart/internal/repository"
	"techcart/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var adminInput service.RegisterInput

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Create an administrator account. Registration over the API only
produces customers; admins are provisioned here.`,
	Example: `  techcart create-admin --email admin@techcart.test --password 's3cret-pass' \
    --first-name Ada --last-name Lovelace --birthday 1990-12-10 \
    --gender female --address "1 Main St" --contact 555-0100`,
	RunE: runCreateAdmin,
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminInput.Email, "email", "", "login e-mail")
	f.StringVar(&adminInput.Password, "password", "", "password, at least 8 characters")
	f.StringVar(&adminInput.FirstName, "first-name", "", "first name")
	f.StringVar(&adminInput.LastName, "last-name", "", "last name")
	f.StringVar(&adminInput.Birthday, "birthday", "", "birthday, YYYY-MM-DD")
	f.StringVar(&adminInput.Gender, "gender", "", "gender")
	f.StringVar(&adminInput.Address, "address", "", "postal address")
	f.StringVar(&adminInput.ContactNumber, "contact", "", "contact number")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(createAdminCmd)
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	adminInput.PasswordConfirmation = adminInput.Password
	if err := middleware.ValidateRequest(&adminInput); err != nil {
		return describeValidation(err)
	}

	db, err := database.New(cmd.Context(), cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	accounts := service.NewAccountService(
		repository.NewStore(db.DB()),
		cfg.JWT.Secret,
		0,
		audit.NewLogRecorder(log),
		log,
	)

	user, err := accounts.CreateAdmin(cmd.Context(), adminInput)
	if err != nil {
		return describeValidation(err)
	}

	log.Info("Administrator ready", zap.String("user_id", user.ID.String()), zap.String("email", user.Email))
	fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s (%s)\n", user.Email, user.ID)
	return nil
}

// describeValidation flattens field errors into one line for the terminal
func describeValidation(err error) error {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	msg := "invalid input:"
	for _, f := range verr.Fields {
		msg += fmt.Sprintf(" %s (%s);", f.Field, f.Message)
	}
	return errors.New(msg)
}
