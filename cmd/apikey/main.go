// Command apikey creates a user if needed and prints a fresh API key for it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/app/repository"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/database"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/env"
)

func main() {
	var (
		emailFlag string
		nameFlag  string
		roleFlag  string
	)

	flag.StringVar(&emailFlag, "email", "", "email of the user to issue the key for")
	flag.StringVar(&nameFlag, "name", "", "display name when the user is created (defaults to the email local part)")
	flag.StringVar(&roleFlag, "role", models.ROLE_FREE, "role for a new user (free, admin)")
	flag.Parse()

	email := strings.ToLower(strings.TrimSpace(emailFlag))
	role := strings.ToLower(strings.TrimSpace(roleFlag))
	if email == "" {
		exitWithError(errors.New("-email is required"))
	}
	// premium needs a plan and is granted through the admin API
	switch role {
	case models.ROLE_FREE, models.ROLE_ADMIN:
	default:
		exitWithError(fmt.Errorf("unsupported role %q", role))
	}

	name := strings.TrimSpace(nameFlag)
	if name == "" {
		name = email
		if at := strings.Index(email, "@"); at >= 3 {
			name = email[:at]
		}
	}

	env.SetupEnvFile()
	database.SetupDatabase()
	users := repository.NewUserRepository(database.GetDB())

	user, err := users.GetByEmail(email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user, err = models.CreateUser(name, email, role)
		if err != nil {
			exitWithError(fmt.Errorf("invalid user: %w", err))
		}
		if err := users.Create(user); err != nil {
			exitWithError(fmt.Errorf("failed to create user: %w", err))
		}
		fmt.Printf("Created user %d (%s) with role %s\n", user.ID, user.Email, user.Role)
	case err != nil:
		exitWithError(fmt.Errorf("failed to load user: %w", err))
	}

	rawKey, err := user.IssueAPIKey()
	if err != nil {
		exitWithError(fmt.Errorf("failed to generate api key: %w", err))
	}
	if err := users.SaveAPIKey(user); err != nil {
		exitWithError(fmt.Errorf("failed to store api key: %w", err))
	}

	fmt.Printf("API key for user %d (%s), shown once:\n%s\n", user.ID, user.Email, rawKey)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
