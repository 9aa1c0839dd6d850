package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RegisterRequest represents the registration body
type RegisterRequest struct {
	UserType  UserType `json:"userType"`
	Name      string   `json:"name"`
	Username  string   `json:"username"`
	Password  string   `json:"password"`
	Age       FlexInt  `json:"age"`
	TotalBeds FlexInt  `json:"totalBeds"`
	EmptyBeds FlexInt  `json:"emptyBeds"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TargetRequest names the hospital a patient asks to join
type TargetRequest struct {
	To string `json:"to" binding:"required"`
}

// PatientRequest names the patient a hospital acts on
type PatientRequest struct {
	Who string `json:"who" binding:"required"`
}

// FlexInt accepts a JSON number or a numeric string, since HTML forms post
// every field as a string. Set is false when the field was absent, null or "".
type FlexInt struct {
	Value int
	Set   bool
	Valid bool
}

// Int builds a set, valid FlexInt
func Int(v int) FlexInt { return FlexInt{Value: v, Set: true, Valid: true} }

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			return nil
		}
	}

	f.Set = true
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	f.Value = int(n)
	f.Valid = true
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Set || !f.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(f.Value)), nil
}
