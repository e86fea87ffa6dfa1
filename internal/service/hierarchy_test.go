package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/metrics"
	"teamnet-backend/internal/repository/memory"
)

func newHierarchyFixture(t *testing.T, members ...string) (*hierarchyService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	for _, id := range members {
		seedMember(t, store, id)
	}
	svc := NewHierarchyService(store, 50, metrics.New(), logger.Nop()).(*hierarchyService)
	return svc, store
}

// chain builds A <- B <- C.
func chain(t *testing.T) (*hierarchyService, *memory.Store) {
	t.Helper()
	svc, store := newHierarchyFixture(t, "A", "B", "C")
	ctx := context.Background()
	_, err := svc.CreateTeamMember(ctx, "A", "", 100)
	require.NoError(t, err)
	_, err = svc.CreateTeamMember(ctx, "B", "A", 50)
	require.NoError(t, err)
	_, err = svc.CreateTeamMember(ctx, "C", "B", 25)
	require.NoError(t, err)
	return svc, store
}

func sortedIDs(tree *domain.DownlineTree) []string {
	ids := tree.NodeIDs()
	sort.Strings(ids)
	return ids
}

func TestHierarchyService_DownlineScenario(t *testing.T) {
	svc, _ := chain(t)
	ctx := context.Background()

	tree, err := svc.GetDownline(ctx, "A", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, sortedIDs(tree))
	b := tree.Find("B")
	require.NotNil(t, b)
	assert.Equal(t, 1, b.DirectChildren)
	assert.True(t, b.Truncated)
	assert.Empty(t, b.Children)

	tree, err = svc.GetDownline(ctx, "A", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, sortedIDs(tree))
	assert.False(t, tree.Find("C").Truncated)
	assert.Equal(t, 2, tree.TotalMembers)
	assert.Equal(t, 75.0, tree.TotalPackage)
	assert.Equal(t, []domain.LevelAggregate{
		{Level: 1, MemberCount: 1, PackageTotal: 50},
		{Level: 2, MemberCount: 1, PackageTotal: 25},
	}, tree.Levels)
	assert.Equal(t, []domain.LevelAggregate{{Level: 1, MemberCount: 1, PackageTotal: 25}}, tree.Find("B").Levels)
}

func TestHierarchyService_CycleScenario(t *testing.T) {
	svc, _ := chain(t)
	ctx := context.Background()

	before, err := svc.GetDownline(ctx, "A", 2)
	require.NoError(t, err)

	err = svc.SetSponsor(ctx, "A", "C")
	assert.ErrorIs(t, err, domain.ErrCycleDetected)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.CycleRejectionsTotal))

	after, err := svc.GetDownline(ctx, "A", 2)
	require.NoError(t, err)
	assert.Equal(t, before.NodeIDs(), after.NodeIDs())

	a, err := svc.GetTeamMember(ctx, "A")
	require.NoError(t, err)
	assert.Nil(t, a.SponsorID)
}

func TestHierarchyService_SetSponsor(t *testing.T) {
	ctx := context.Background()

	t.Run("SelfSponsor", func(t *testing.T) {
		svc, _ := chain(t)
		assert.ErrorIs(t, svc.SetSponsor(ctx, "B", "B"), domain.ErrCycleDetected)
	})

	t.Run("UnknownSponsor", func(t *testing.T) {
		svc, _ := chain(t)
		assert.ErrorIs(t, svc.SetSponsor(ctx, "B", "ghost"), domain.ErrNotFound)
	})

	t.Run("UnknownMember", func(t *testing.T) {
		svc, _ := chain(t)
		assert.ErrorIs(t, svc.SetSponsor(ctx, "ghost", "A"), domain.ErrNotFound)
	})

	t.Run("DeactivatedSponsor", func(t *testing.T) {
		svc, _ := chain(t)
		require.NoError(t, svc.RemoveMember(ctx, "A"))
		assert.ErrorIs(t, svc.SetSponsor(ctx, "C", "A"), domain.ErrValidation)
	})

	t.Run("Reparent", func(t *testing.T) {
		svc, _ := chain(t)
		require.NoError(t, svc.SetSponsor(ctx, "C", "A"))
		tree, err := svc.GetDownline(ctx, "A", 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, sortedIDs(tree))
		assert.Equal(t, 2, tree.Root.DirectChildren)
	})

	t.Run("Detach", func(t *testing.T) {
		svc, _ := chain(t)
		require.NoError(t, svc.SetSponsor(ctx, "B", ""))
		b, err := svc.GetTeamMember(ctx, "B")
		require.NoError(t, err)
		assert.True(t, b.IsRoot())
		// A may now be placed under C.
		require.NoError(t, svc.SetSponsor(ctx, "A", "C"))
	})
}

func TestHierarchyService_Acyclicity(t *testing.T) {
	ids := []string{"n0", "n1", "n2", "n3", "n4", "n5"}
	svc, _ := newHierarchyFixture(t, ids...)
	ctx := context.Background()
	for _, id := range ids {
		_, err := svc.CreateTeamMember(ctx, id, "", 10)
		require.NoError(t, err)
	}

	// Deterministic pseudo-random sequence of sponsor changes.
	seed := uint32(7)
	for i := 0; i < 200; i++ {
		seed = seed*1103515245 + 12345
		m := ids[int(seed>>8)%len(ids)]
		seed = seed*1103515245 + 12345
		sp := ids[int(seed>>8)%len(ids)]

		err := svc.SetSponsor(ctx, m, sp)
		if err != nil {
			require.ErrorIs(t, err, domain.ErrCycleDetected, "step %d: %s -> %s", i, m, sp)
		}
		assertAcyclic(t, svc, ids)
	}
}

func assertAcyclic(t *testing.T, svc *hierarchyService, ids []string) {
	t.Helper()
	ctx := context.Background()
	parent := map[string]string{}
	for _, id := range ids {
		tm, err := svc.GetTeamMember(ctx, id)
		require.NoError(t, err)
		if tm.SponsorID != nil {
			parent[id] = *tm.SponsorID
		}
	}
	for _, id := range ids {
		seen := map[string]bool{}
		for cur, ok := id, true; ok; cur, ok = parent[cur] {
			require.False(t, seen[cur], "cycle through %s", cur)
			seen[cur] = true
		}
	}
}

func TestHierarchyService_GetDownline_DepthBound(t *testing.T) {
	ids := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		ids = append(ids, fmt.Sprintf("m%02d", i))
	}
	svc, _ := newHierarchyFixture(t, ids...)
	ctx := context.Background()

	// Binary-ish tree: m_i sponsors m_{2i+1} and m_{2i+2}.
	for i, id := range ids {
		sponsor := ""
		if i > 0 {
			sponsor = ids[(i-1)/2]
		}
		_, err := svc.CreateTeamMember(ctx, id, sponsor, float64(i))
		require.NoError(t, err)
	}

	var previous map[string]bool
	for depth := 0; depth <= 6; depth++ {
		tree, err := svc.GetDownline(ctx, "m00", depth)
		require.NoError(t, err)

		current := map[string]bool{}
		for _, id := range tree.NodeIDs() {
			n := tree.Find(id)
			assert.LessOrEqual(t, n.Depth, depth)
			current[id] = true
		}
		if depth == 0 {
			assert.Equal(t, []string{"m00"}, tree.NodeIDs())
			assert.True(t, tree.Root.Truncated)
			assert.Equal(t, 2, tree.Root.DirectChildren)
		}
		for id := range previous {
			assert.True(t, current[id], "node %s lost at depth %d", id, depth)
		}
		previous = current
	}
	assert.Len(t, previous, 30)
}

func TestHierarchyService_GetDownline_Errors(t *testing.T) {
	svc, _ := chain(t)
	ctx := context.Background()

	_, err := svc.GetDownline(ctx, "A", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidDepth)

	_, err = svc.GetDownline(ctx, "A", 51)
	assert.ErrorIs(t, err, domain.ErrInvalidDepth)

	_, err = svc.GetDownline(ctx, "ghost", 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	tree, err := svc.GetDownline(ctx, "C", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, tree.NodeIDs())
	assert.Equal(t, 0, tree.TotalMembers)
}

func TestHierarchyService_GetDownline_MalformedCycle(t *testing.T) {
	svc, store := chain(t)
	ctx := context.Background()

	// Corrupt the graph behind the service's back: A <- C closes a loop.
	c := "C"
	store.ForceSponsor("A", &c)

	tree, err := svc.GetDownline(ctx, "A", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, tree.NodeIDs())
	require.Len(t, tree.CycleWarnings, 1)
	assert.Equal(t, domain.CycleWarning{FromID: "C", ToID: "A", Depth: 3}, tree.CycleWarnings[0])
	assert.Equal(t, 1, tree.Find("C").DirectChildren)
}

func TestHierarchyService_CreateTeamMember(t *testing.T) {
	ctx := context.Background()

	t.Run("Duplicate", func(t *testing.T) {
		svc, _ := chain(t)
		_, err := svc.CreateTeamMember(ctx, "B", "A", 1)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("UnknownMember", func(t *testing.T) {
		svc, _ := chain(t)
		_, err := svc.CreateTeamMember(ctx, "ghost", "A", 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("NegativePrice", func(t *testing.T) {
		svc, _ := chain(t)
		_, err := svc.CreateTeamMember(ctx, "A", "", -1)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("SelfSponsor", func(t *testing.T) {
		svc, _ := newHierarchyFixture(t, "X")
		_, err := svc.CreateTeamMember(ctx, "X", "X", 1)
		assert.ErrorIs(t, err, domain.ErrCycleDetected)
	})
}

func TestHierarchyService_RemoveAndUpdate(t *testing.T) {
	svc, _ := chain(t)
	ctx := context.Background()

	require.NoError(t, svc.RemoveMember(ctx, "B"))
	assert.ErrorIs(t, svc.RemoveMember(ctx, "ghost"), domain.ErrNotFound)

	active, err := svc.ListTeamMembers(ctx, false)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := svc.ListTeamMembers(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Children of a deactivated member stay attached.
	tree, err := svc.GetDownline(ctx, "A", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, tree.NodeIDs())
	assert.False(t, tree.Find("B").Active)

	tm, err := svc.UpdatePackagePrice(ctx, "C", 99)
	require.NoError(t, err)
	assert.Equal(t, 99.0, tm.PackagePrice)

	_, err = svc.UpdatePackagePrice(ctx, "C", -5)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestHierarchyService_ConcurrentOpposingSponsorChanges(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 25; round++ {
		svc, _ := newHierarchyFixture(t, "A", "B")
		_, err := svc.CreateTeamMember(ctx, "A", "", 10)
		require.NoError(t, err)
		_, err = svc.CreateTeamMember(ctx, "B", "", 10)
		require.NoError(t, err)

		start := make(chan struct{})
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i, pair := range [][2]string{{"A", "B"}, {"B", "A"}} {
			wg.Add(1)
			go func(i int, member, sponsor string) {
				defer wg.Done()
				<-start
				errs[i] = svc.SetSponsor(ctx, member, sponsor)
			}(i, pair[0], pair[1])
		}
		close(start)
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				require.ErrorIs(t, err, domain.ErrCycleDetected, "round %d", round)
				failed++
			}
		}
		assert.Equal(t, 1, failed, "round %d: exactly one change must lose", round)
		assertAcyclic(t, svc, []string{"A", "B"})
	}
}
