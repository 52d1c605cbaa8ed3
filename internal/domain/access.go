package domain

import "time"

// ============================================================
// Identity, profile and role eligibility
// ============================================================

// Identity is an authenticated principal in the managed auth subsystem.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ProviderSession is what the auth provider hands back on sign-in.
type ProviderSession struct {
	Identity     Identity
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// Profile is the personal record attached one-to-one to an identity.
type Profile struct {
	ID         string `json:"id"`
	Email      string `json:"email,omitempty"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	NationalID string `json:"national_id"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
}

// FullName joins first and last names.
func (p *Profile) FullName() string {
	if p == nil {
		return ""
	}
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Eligibility is the evaluator's verdict for one granted role.
type Eligibility struct {
	Role     Role   `json:"role"`
	Label    string `json:"label"`
	Eligible bool   `json:"eligible"`
	// Selectable differs from Eligible only for the administrator override.
	Selectable    bool            `json:"selectable"`
	NextAvailable *ScheduleWindow `json:"next_available,omitempty"`
	Message       string          `json:"message,omitempty"`
}

// FindEligibility returns the verdict for role, if present.
func FindEligibility(list []Eligibility, role Role) (Eligibility, bool) {
	for _, e := range list {
		if e.Role == role {
			return e, true
		}
	}
	return Eligibility{}, false
}

// UserWithRoles is the administration view of a member.
type UserWithRoles struct {
	Profile
	Roles []Role `json:"roles"`
}

// SignUpRequest is the body for POST /functions/v1/signup.
type SignUpRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	NationalID string `json:"national_id"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
}

// SignUpResponse is returned after a successful sign-up.
type SignUpResponse struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
	Message string `json:"message"`
}

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
