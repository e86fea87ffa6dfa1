package domain

import "time"

// TeamMember is the hierarchy-facing projection of a Member.
type TeamMember struct {
	UserID       string    `json:"userId"`
	SponsorID    *string   `json:"sponsorId"`
	PackagePrice float64   `json:"packagePrice"`
	JoinedAt     time.Time `json:"joinedAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Active       bool      `json:"active"`
}

func (tm *TeamMember) IsRoot() bool {
	return tm.SponsorID == nil
}

// LevelAggregate summarizes the members found at one level of a downline.
type LevelAggregate struct {
	Level        int     `json:"level"`
	MemberCount  int     `json:"memberCount"`
	PackageTotal float64 `json:"packageTotal"`
}

type DownlineNode struct {
	UserID         string  `json:"userId"`
	SponsorID      *string `json:"sponsorId"`
	Depth          int     `json:"depth"`
	Active         bool    `json:"active"`
	PackagePrice   float64 `json:"packagePrice"`
	DirectChildren int     `json:"directChildren"`
	// Truncated is set on nodes at the depth cutoff that still have children.
	Truncated bool `json:"truncated,omitempty"`
	// Levels aggregates this node's subtree, level 1 being its direct children.
	Levels   []LevelAggregate `json:"levels"`
	Children []*DownlineNode  `json:"children"`
}

// CycleWarning marks an edge that led back to an already visited node.
type CycleWarning struct {
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
	Depth  int    `json:"depth"`
}

type DownlineTree struct {
	Root          *DownlineNode    `json:"root"`
	MaxDepth      int              `json:"maxDepth"`
	Levels        []LevelAggregate `json:"levels"`
	TotalMembers  int              `json:"totalMembers"`
	TotalPackage  float64          `json:"totalPackage"`
	CycleWarnings []CycleWarning   `json:"cycleWarnings,omitempty"`
}

// NodeIDs lists every user id in the tree in breadth-first order.
func (t *DownlineTree) NodeIDs() []string {
	if t == nil || t.Root == nil {
		return nil
	}
	var ids []string
	queue := []*DownlineNode{t.Root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		ids = append(ids, n.UserID)
		queue = append(queue, n.Children...)
	}
	return ids
}

// Find returns the node with the given id, or nil.
func (t *DownlineTree) Find(userID string) *DownlineNode {
	if t == nil || t.Root == nil {
		return nil
	}
	queue := []*DownlineNode{t.Root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.UserID == userID {
			return n
		}
		queue = append(queue, n.Children...)
	}
	return nil
}
