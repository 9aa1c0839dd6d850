package models

// UserType distinguishes patients from hospitals. Fixed at registration.
type UserType string

const (
	Patient  UserType = "patient"
	Hospital UserType = "hospital"
)

// Valid reports whether t is a known account type
func (t UserType) Valid() bool {
	return t == Patient || t == Hospital
}

// Patient states
const (
	StateIdle     = ""
	StatePending  = "pending"
	StateAdmitted = "admitted"
	StateRejected = "rejected"
)

// Entry is the value stored in a hospital's requests and admits maps
type Entry struct {
	Name string `json:"name"`
}

// Account represents a patient or hospital user document, keyed by username
type Account struct {
	UserType UserType `json:"userType"`
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Password string   `json:"password,omitempty"` // bcrypt hash
	Avatar   string   `json:"avatar"`

	// patient only
	Age   int    `json:"age,omitempty"`
	State string `json:"state"`
	To    string `json:"to"`

	// hospital only
	TotalBeds int              `json:"totalBeds,omitempty"`
	EmptyBeds int              `json:"emptyBeds"`
	Requests  map[string]Entry `json:"requests"`
	Admits    map[string]Entry `json:"admits"`
}

// IsHospital reports whether the account is a hospital
func (a *Account) IsHospital() bool { return a.UserType == Hospital }

// IsPatient reports whether the account is a patient
func (a *Account) IsPatient() bool { return a.UserType == Patient }

// Normalize allocates nil maps so callers can mutate them directly
func (a *Account) Normalize() {
	if a.Requests == nil {
		a.Requests = make(map[string]Entry)
	}
	if a.Admits == nil {
		a.Admits = make(map[string]Entry)
	}
}

// Public returns a copy safe to send to clients
func (a *Account) Public() *Account {
	cp := *a
	cp.Password = ""
	cp.Requests = copyEntries(a.Requests)
	cp.Admits = copyEntries(a.Admits)
	return &cp
}

// Summary projects a hospital onto the fields patients browse
func (a *Account) Summary() HospitalSummary {
	return HospitalSummary{
		Name:      a.Name,
		Username:  a.Username,
		TotalBeds: a.TotalBeds,
		EmptyBeds: a.EmptyBeds,
	}
}

// HospitalSummary is one row of the hospital listing
type HospitalSummary struct {
	Name      string `json:"name"`
	TotalBeds int    `json:"totalBeds"`
	EmptyBeds int    `json:"emptyBeds"`
	Username  string `json:"username"`
}

func copyEntries(m map[string]Entry) map[string]Entry {
	out := make(map[string]Entry, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
