package server

import (
	"fmt"

	"github.com/jrsteele09/go-hr-console/users"
	"github.com/rs/zerolog/log"
)

// SeedAccount is a demo employee created on an empty directory.
type SeedAccount struct {
	Email    string
	Password string
	MFA      bool
}

var defaultSeeds = []users.User{
	{
		Email:      "employee@hr.local",
		Name:       "Demo Employee",
		Role:       users.RoleEmployee,
		Department: users.Department{ID: "dept-eng", Name: "Engineering"},
		MFType:     users.MFNone,
	},
	{
		Email:      "manager@hr.local",
		Name:       "Demo Manager",
		Role:       users.RoleManager,
		Department: users.Department{ID: "dept-eng", Name: "Engineering"},
		MFType:     users.MFEmail,
	},
}

// Bootstrap creates the demo employees when the directory is empty and returns their
// generated credentials. It returns nothing when employees already exist.
func Bootstrap(repo users.UserRepo) ([]SeedAccount, error) {
	existing, err := repo.List(0, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing users: %w", err)
	}
	if len(existing) > 0 {
		log.Info().Msg("bootstrap: employees already exist")
		return nil, nil
	}

	accounts := make([]SeedAccount, 0, len(defaultSeeds))
	for _, seed := range defaultSeeds {
		password, err := generateRandomString(12)
		if err != nil {
			return nil, fmt.Errorf("failed to generate password: %w", err)
		}
		hash, err := users.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}

		u := seed
		u.PasswordHash = hash
		if err := repo.Upsert(&u); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", u.Email, err)
		}
		accounts = append(accounts, SeedAccount{Email: u.Email, Password: password, MFA: u.MFAAuth()})
	}

	for _, a := range accounts {
		log.Info().Str("email", a.Email).Str("password", a.Password).Bool("mfa", a.MFA).
			Msg("bootstrap: created demo employee, save this password, it will not be displayed again")
	}
	return accounts, nil
}
