// Package users is the employee directory of the development backend.
package users

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

type MFAuthType string

const (
	MFNone  MFAuthType = "none"
	MFEmail MFAuthType = "email"
)

// RoleType is an employee's role in the HR console.
type RoleType string

const (
	RoleEmployee RoleType = "employee"
	RoleManager  RoleType = "manager"
	RoleHRAdmin  RoleType = "hr_admin"
)

type Department struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type User struct {
	ID           string     `json:"_id,omitempty"`
	Email        string     `json:"email,omitempty"`
	Name         string     `json:"name,omitempty"`
	PasswordHash string     `json:"-"` // never serialize
	Role         RoleType   `json:"role,omitempty"`
	Department   Department `json:"department"`

	Blocked bool       `json:"blocked,omitempty"` // blocked users cannot log in
	MFType  MFAuthType `json:"mfType,omitempty"`
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword compares password with the user's stored hash.
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}

func (u *User) MFAAuth() bool {
	return u.MFType != "" && u.MFType != MFNone
}

// CanViewAttendance reports whether u may read userID's time tracker.
func (u *User) CanViewAttendance(userID string) bool {
	return u.ID == userID || u.Role == RoleHRAdmin || u.Role == RoleManager
}
