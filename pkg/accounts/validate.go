package accounts

import (
	"regexp"
	"strings"

	"bedmatch/pkg/apperr"
	"bedmatch/pkg/models"
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)
	passwordRe = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]+$`)
)

const (
	minUsernameLen = 4
	minPasswordLen = 6
	maxNameLen     = 100
	maxAge         = 120
)

// ValidateCredentials checks username and password formats shared by
// registration and login.
func ValidateCredentials(username, password string) error {
	if len(username) < minUsernameLen {
		return apperr.Validation("Username must be at least 4 characters.")
	}
	if !usernameRe.MatchString(username) {
		return apperr.Validation("Username must contain only letters, numbers, _ or .")
	}
	if len(password) < minPasswordLen {
		return apperr.Validation("Password must be at least 6 characters long.")
	}
	if !passwordRe.MatchString(password) {
		return apperr.Validation("Password can only contain letters, numbers, and the special characters @$!%*?&.")
	}
	return nil
}

// validateRegistration trims req in place and checks every field
func validateRegistration(req *models.RegisterRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.TrimSpace(req.Username)
	req.Password = strings.TrimSpace(req.Password)

	if !req.UserType.Valid() {
		return apperr.Validation("User type is required and must be patient or hospital.")
	}
	if req.Name == "" || req.Username == "" || req.Password == "" {
		return apperr.Validation("Name, username, and password are required")
	}
	if req.UserType == models.Patient && !req.Age.Set {
		return apperr.Validation("Age is required for patients.")
	}
	if req.UserType == models.Hospital && (!req.TotalBeds.Set || !req.EmptyBeds.Set) {
		return apperr.Validation("Total beds and empty beds are required for hospitals.")
	}
	if len([]rune(req.Name)) > maxNameLen {
		return apperr.Validation("Name must be 100 characters or less.")
	}
	if err := ValidateCredentials(req.Username, req.Password); err != nil {
		return err
	}

	switch req.UserType {
	case models.Patient:
		if !req.Age.Valid || req.Age.Value <= 0 || req.Age.Value > maxAge {
			return apperr.Validation("Age must be a valid number between 1 and 120.")
		}
	case models.Hospital:
		if !req.TotalBeds.Valid || req.TotalBeds.Value <= 0 {
			return apperr.Validation("Total beds must be a valid number greater than 0.")
		}
		if !req.EmptyBeds.Valid || req.EmptyBeds.Value < 0 {
			return apperr.Validation("Empty beds must be a valid number greater than or equal to 0.")
		}
		if req.EmptyBeds.Value > req.TotalBeds.Value {
			return apperr.Validation("Empty beds cannot be greater than total beds.")
		}
	}
	return nil
}
