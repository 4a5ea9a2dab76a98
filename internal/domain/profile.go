package domain

import "time"

// Profile is a user identity as exposed by the identity system.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the best human-readable name for the profile.
func (p *Profile) DisplayName() string {
	for _, v := range []string{p.FullName, p.Email} {
		if v != "" {
			return v
		}
	}
	return p.ID
}

type Organisation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`

	// Back-references rebuilt from the membership and project stores.
	MemberIDs  []string `json:"member_ids"`
	ProjectIDs []string `json:"project_ids"`
}

// OrganisationMembership is the organisation-owned link between a profile and an organisation.
type OrganisationMembership struct {
	ID             string    `json:"id"`
	OrganisationID string    `json:"organisation_id"`
	ProfileID      string    `json:"profile_id"`
	Role           Role      `json:"role"`
	JoinedAt       time.Time `json:"joined_at"`
}

// ProjectMembership is the project-owned link between a profile and a project.
type ProjectMembership struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	ProfileID string    `json:"profile_id"`
	Role      Role      `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

// OrganisationProfile decorates a membership with the member's profile.
// Profile is nil when the profile could not be resolved.
type OrganisationProfile struct {
	OrganisationMembership
	Profile *Profile `json:"profile"`
}

// DisplayName falls back to the profile ID when enrichment is missing.
func (m *OrganisationProfile) DisplayName() string {
	if m.Profile != nil {
		return m.Profile.DisplayName()
	}
	return m.ProfileID
}

// ProjectProfile decorates a project membership with the member's profile.
type ProjectProfile struct {
	ProjectMembership
	Profile *Profile `json:"profile"`
}

// DisplayName falls back to the profile ID when enrichment is missing.
func (m *ProjectProfile) DisplayName() string {
	if m.Profile != nil {
		return m.Profile.DisplayName()
	}
	return m.ProfileID
}
