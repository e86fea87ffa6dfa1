package service

import (
	"context"
	"errors"
	"strings"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/metrics"
	"teamnet-backend/internal/repository"
)

type hierarchyService struct {
	store    repository.Store
	maxDepth int
	metrics  *metrics.Metrics
	log      logger.Logger
	now      Clock
}

func NewHierarchyService(store repository.Store, maxDepth int, m *metrics.Metrics, log logger.Logger) HierarchyService {
	if maxDepth <= 0 {
		maxDepth = 50
	}
	return &hierarchyService{
		store:    store,
		maxDepth: maxDepth,
		metrics:  m,
		log:      logger.Module(log, "hierarchy"),
		now:      systemClock,
	}
}

func (s *hierarchyService) CreateTeamMember(ctx context.Context, userID, sponsorID string, packagePrice float64) (*domain.TeamMember, error) {
	userID = strings.TrimSpace(userID)
	sponsorID = strings.TrimSpace(sponsorID)
	if userID == "" {
		return nil, domain.Errorf(domain.KindValidation, "userId is required")
	}
	if packagePrice < 0 {
		return nil, domain.Errorf(domain.KindValidation, "packagePrice must not be negative")
	}

	var created *domain.TeamMember
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Hierarchy.LockGraph(ctx); err != nil {
			return err
		}
		if _, err := repos.Members.GetByID(ctx, userID); err != nil {
			return err
		}
		if existing, err := repos.Hierarchy.GetByUserID(ctx, userID); err == nil && existing != nil {
			return domain.Errorf(domain.KindAlreadyExists, "member %s is already in the hierarchy", userID)
		} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		tm := &domain.TeamMember{
			UserID:       userID,
			PackagePrice: packagePrice,
			JoinedAt:     s.now(),
			Active:       true,
		}
		if sponsorID != "" {
			if err := s.checkSponsor(ctx, repos, userID, sponsorID); err != nil {
				return err
			}
			tm.SponsorID = &sponsorID
		}
		if err := repos.Hierarchy.Create(ctx, tm); err != nil {
			return err
		}
		created, _ = repos.Hierarchy.GetByUserID(ctx, userID)
		if created == nil {
			created = tm
		}
		return nil
	})
	if err != nil {
		s.observeCycle(err)
		return nil, err
	}
	s.log.Info("team member created", "user_id", userID, "sponsor_id", sponsorID)
	return created, nil
}

func (s *hierarchyService) GetTeamMember(ctx context.Context, userID string) (*domain.TeamMember, error) {
	return s.store.Repositories().Hierarchy.GetByUserID(ctx, userID)
}

func (s *hierarchyService) ListTeamMembers(ctx context.Context, includeInactive bool) ([]domain.TeamMember, error) {
	return s.store.Repositories().Hierarchy.List(ctx, includeInactive)
}

// SetSponsor re-parents memberID under sponsorID. An empty sponsorID detaches
// the member and makes it a root.
func (s *hierarchyService) SetSponsor(ctx context.Context, memberID, sponsorID string) error {
	memberID = strings.TrimSpace(memberID)
	sponsorID = strings.TrimSpace(sponsorID)
	logger.EnterMethod(s.log, "hierarchyService.SetSponsor", "user_id", memberID, "sponsor_id", sponsorID)
	if memberID == "" {
		return domain.Errorf(domain.KindValidation, "userId is required")
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Hierarchy.LockGraph(ctx); err != nil {
			return err
		}
		if _, err := repos.Hierarchy.GetByUserID(ctx, memberID); err != nil {
			return err
		}
		if sponsorID == "" {
			return repos.Hierarchy.UpdateSponsor(ctx, memberID, nil)
		}
		if err := s.checkSponsor(ctx, repos, memberID, sponsorID); err != nil {
			return err
		}
		return repos.Hierarchy.UpdateSponsor(ctx, memberID, &sponsorID)
	})
	if err != nil {
		s.observeCycle(err)
		logger.ExitMethodWithError(s.log, "hierarchyService.SetSponsor", err, "user_id", memberID, "sponsor_id", sponsorID)
		return err
	}
	s.log.Info("sponsor updated", "user_id", memberID, "sponsor_id", sponsorID)
	logger.ExitMethod(s.log, "hierarchyService.SetSponsor", "user_id", memberID)
	return nil
}

// checkSponsor verifies sponsorID can sponsor memberID: it exists, is active,
// and memberID is not on the path from sponsorID up to its root.
func (s *hierarchyService) checkSponsor(ctx context.Context, repos repository.Repositories, memberID, sponsorID string) error {
	if sponsorID == memberID {
		return domain.Errorf(domain.KindCycleDetected, "member %s cannot sponsor itself", memberID)
	}
	sponsor, err := repos.Hierarchy.GetByUserID(ctx, sponsorID)
	if err != nil {
		return err
	}
	if !sponsor.Active {
		return domain.Errorf(domain.KindValidation, "sponsor %s is deactivated", sponsorID)
	}

	seen := map[string]bool{sponsor.UserID: true}
	cur := sponsor
	for cur.SponsorID != nil {
		next := *cur.SponsorID
		if next == memberID {
			return domain.Errorf(domain.KindCycleDetected, "member %s is an ancestor of %s", memberID, sponsorID)
		}
		// A loop that does not pass through memberID cannot be closed by this edge.
		if seen[next] {
			s.log.Warn("existing sponsor loop found during path walk", "user_id", next)
			return nil
		}
		seen[next] = true
		cur, err = repos.Hierarchy.GetByUserID(ctx, next)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *hierarchyService) observeCycle(err error) {
	if errors.Is(err, domain.ErrCycleDetected) {
		s.metrics.ObserveCycleRejected()
	}
}

func (s *hierarchyService) UpdatePackagePrice(ctx context.Context, userID string, price float64) (*domain.TeamMember, error) {
	if price < 0 {
		return nil, domain.Errorf(domain.KindValidation, "packagePrice must not be negative")
	}
	var updated *domain.TeamMember
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Hierarchy.UpdatePackagePrice(ctx, userID, price); err != nil {
			return err
		}
		var err error
		updated, err = repos.Hierarchy.GetByUserID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveMember deactivates a member. Its children keep their sponsor edge.
func (s *hierarchyService) RemoveMember(ctx context.Context, memberID string) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Hierarchy.LockGraph(ctx); err != nil {
			return err
		}
		if _, err := repos.Hierarchy.GetByUserID(ctx, memberID); err != nil {
			return err
		}
		return repos.Hierarchy.SetActive(ctx, memberID, false)
	})
	if err != nil {
		return err
	}
	s.log.Info("team member deactivated", "user_id", memberID)
	return nil
}

// GetDownline walks the sponsor graph breadth-first from rootID, one query per
// level. Nodes reached a second time are reported as cycle warnings and not
// descended into.
func (s *hierarchyService) GetDownline(ctx context.Context, rootID string, maxDepth int) (*domain.DownlineTree, error) {
	if maxDepth < 0 || maxDepth > s.maxDepth {
		return nil, domain.Errorf(domain.KindInvalidDepth, "depth must be between 0 and %d", s.maxDepth)
	}

	var tree *domain.DownlineTree
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		root, err := repos.Hierarchy.GetByUserID(ctx, rootID)
		if err != nil {
			return err
		}
		tree, err = buildDownline(ctx, repos.Hierarchy, root, maxDepth)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveDownline(tree.TotalMembers+1, len(tree.CycleWarnings))
	if len(tree.CycleWarnings) > 0 {
		s.log.Warn("downline contains cycles", "root_id", rootID, "warnings", len(tree.CycleWarnings))
	}
	return tree, nil
}

func newDownlineNode(tm domain.TeamMember, depth int) *domain.DownlineNode {
	return &domain.DownlineNode{
		UserID:       tm.UserID,
		SponsorID:    tm.SponsorID,
		Depth:        depth,
		Active:       tm.Active,
		PackagePrice: tm.PackagePrice,
		Levels:       []domain.LevelAggregate{},
		Children:     []*domain.DownlineNode{},
	}
}

func buildDownline(ctx context.Context, repo repository.HierarchyRepository, root *domain.TeamMember, maxDepth int) (*domain.DownlineTree, error) {
	rootNode := newDownlineNode(*root, 0)
	tree := &domain.DownlineTree{
		Root:          rootNode,
		MaxDepth:      maxDepth,
		CycleWarnings: []domain.CycleWarning{},
	}

	visited := map[string]bool{root.UserID: true}
	order := []*domain.DownlineNode{rootNode}
	frontier := []*domain.DownlineNode{rootNode}

	for depth := 0; len(frontier) > 0; depth++ {
		ids := make([]string, len(frontier))
		for i, n := range frontier {
			ids[i] = n.UserID
		}

		if depth == maxDepth {
			counts, err := repo.CountChildren(ctx, ids)
			if err != nil {
				return nil, err
			}
			for _, n := range frontier {
				n.DirectChildren = counts[n.UserID]
				n.Truncated = n.DirectChildren > 0
			}
			break
		}

		children, err := repo.ListChildren(ctx, ids)
		if err != nil {
			return nil, err
		}
		byParent := make(map[string][]domain.TeamMember, len(frontier))
		for _, c := range children {
			if c.SponsorID == nil {
				continue
			}
			byParent[*c.SponsorID] = append(byParent[*c.SponsorID], c)
		}

		var next []*domain.DownlineNode
		for _, parent := range frontier {
			for _, c := range byParent[parent.UserID] {
				parent.DirectChildren++
				if visited[c.UserID] {
					tree.CycleWarnings = append(tree.CycleWarnings, domain.CycleWarning{
						FromID: parent.UserID,
						ToID:   c.UserID,
						Depth:  depth + 1,
					})
					continue
				}
				visited[c.UserID] = true
				child := newDownlineNode(c, depth+1)
				parent.Children = append(parent.Children, child)
				next = append(next, child)
				order = append(order, child)
			}
		}
		frontier = next
	}

	// Bottom-up: reverse BFS order visits every child before its parent.
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		for _, c := range n.Children {
			n.Levels = addLevel(n.Levels, 1, 1, c.PackagePrice)
			for _, lvl := range c.Levels {
				n.Levels = addLevel(n.Levels, lvl.Level+1, lvl.MemberCount, lvl.PackageTotal)
			}
		}
	}

	tree.Levels = append([]domain.LevelAggregate{}, rootNode.Levels...)
	for _, lvl := range tree.Levels {
		tree.TotalMembers += lvl.MemberCount
		tree.TotalPackage += lvl.PackageTotal
	}
	return tree, nil
}

// addLevel accumulates into the aggregate for level, keeping levels ordered
// and contiguous from 1.
func addLevel(levels []domain.LevelAggregate, level, count int, total float64) []domain.LevelAggregate {
	for len(levels) < level {
		levels = append(levels, domain.LevelAggregate{Level: len(levels) + 1})
	}
	levels[level-1].MemberCount += count
	levels[level-1].PackageTotal += total
	return levels
}
