package engine

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/c360studio/taxorank/oracle"
	"github.com/c360studio/taxorank/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniqueChildren answers every list request with two names derived from the
// concept in the prompt, so no two concepts propose the same child.
func uniqueChildren() answer {
	var n atomic.Int64
	return func(_ int, p oracle.Prompt) (string, bool) {
		i := n.Add(1)
		return fmt.Sprintf("Kind %d A, Kind %d B", i, i), true
	}
}

func buildGateway() *scripted {
	return newScripted().
		on(oracle.KindRootCheck, always("yes")).
		on(oracle.KindDescriptions, always(vehicleDescriptions)).
		on(oracle.KindDefinitions, always(vehicleDefinitions)).
		on(oracle.KindCriteria, sequence("Propulsion", "Terrain", "Size")).
		on(oracle.KindRedundantCriteria, always("None")).
		on(oracle.KindRanks, always("Propulsion, Size")).
		on(oracle.KindOptimizeRanks, always("Propulsion, Size; Terrain")).
		on(oracle.KindDefineConcept, always("A thing that moves")).
		on(oracle.KindListSubconcepts, uniqueChildren()).
		on(oracle.KindCheckSubconcepts, always("+")).
		on(oracle.KindRedundantSubconcepts, always("None"))
}

func TestBuild_EndToEnd(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			store := &memoryStore{}
			e := New(buildGateway(),
				WithCheckpointer(store),
				WithOptions(Options{VerifyRoot: true, Workers: workers}))

			tx, reports, err := e.Build(context.Background(), "Vehicle")
			require.NoError(t, err)
			require.NotEmpty(t, reports)

			assert.True(t, tx.Exhausted())
			require.Equal(t, 2, tx.DimensionCount())
			require.NoError(t, tx.Validate())

			// Propulsion > Size: 1 root -> 2 -> 4. Terrain: 1 root -> 2.
			assert.Equal(t, 1+2+4+2, tx.Len())

			cursors := map[int]int{}
			for _, r := range reports {
				require.NoError(t, r.Err)
				dim, _ := tx.Dimension(r.Dimension)
				assert.GreaterOrEqual(t, r.Cursor, cursors[r.Dimension], "cursor never decreases")
				assert.LessOrEqual(t, r.Cursor, len(dim.Ranks)+2)
				cursors[r.Dimension] = r.Cursor
			}

			assert.Equal(t, len(store.snaps), len(tx.Saves()))
			last := store.last()
			require.NotNil(t, last)
			restored, err := taxonomy.FromSnapshot(last)
			require.NoError(t, err)
			assert.ElementsMatch(t, tx.Names(), restored.Names())
		})
	}
}

func TestBuild_MaxLevels(t *testing.T) {
	e := New(buildGateway(), WithOptions(Options{VerifyRoot: true, MaxLevels: 1}))

	tx, reports, err := e.Build(context.Background(), "Vehicle")
	require.NoError(t, err)
	assert.Len(t, reports, 2, "one level per dimension")
	assert.False(t, tx.Exhausted())
	assert.Equal(t, 1+2+2, tx.Len())
}

func TestBuild_Unresolved(t *testing.T) {
	gw := newScripted().
		on(oracle.KindRootCheck, always("no")).
		on(oracle.KindMemberCheck, always("no"))

	tx, reports, err := New(gw).Build(context.Background(), "Qwxyz")
	require.NoError(t, err)
	assert.Nil(t, reports)
	assert.False(t, tx.Resolved())
	assert.Zero(t, gw.count(oracle.KindCriteria))
}

func TestBuild_CanceledDuringExpansion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := buildGateway().on(oracle.KindListSubconcepts, func(n int, p oracle.Prompt) (string, bool) {
		if n == 2 {
			cancel()
		}
		return fmt.Sprintf("Item %d", n), true
	})

	tx, reports, err := New(gw).Build(ctx, "Vehicle")
	assert.ErrorIs(t, err, context.Canceled)
	require.NotEmpty(t, reports)
	assert.ErrorIs(t, reports[len(reports)-1].Err, context.Canceled)
	require.NoError(t, tx.Validate())
	assert.False(t, tx.Exhausted())
	for _, name := range tx.Names() {
		assert.False(t, strings.HasPrefix(name, "Item 2"), "canceled attempt produced %q", name)
	}
}
