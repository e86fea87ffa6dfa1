package domain

import "time"

// Team groups members for administrative visibility. It is independent of the
// sponsor graph.
type Team struct {
	ID         string     `json:"id"`
	TeamName   string     `json:"teamName"`
	TeamLead   string     `json:"teamLead"`
	Members    []string   `json:"members"`
	Tier       string     `json:"tier"`
	IsActive   bool       `json:"isActive"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
	CreatedBy  string     `json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (t *Team) HasMember(memberID string) bool {
	for _, m := range t.Members {
		if m == memberID {
			return true
		}
	}
	return false
}

type TeamStatistics struct {
	TotalTeams    int64 `json:"totalTeams"`
	ActiveTeams   int64 `json:"activeTeams"`
	InactiveTeams int64 `json:"inactiveTeams"`
	VerifiedTeams int64 `json:"verifiedTeams"`
	TotalMembers  int64 `json:"totalMembers"`
}
