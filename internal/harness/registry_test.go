package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopRun(context.Context) error { return nil }

func TestRegistry_PreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, reg.Add(Scenario{Name: name, Run: noopRun}))
	}

	assert.Equal(t, []string{"c", "a", "b"}, reg.Names())
}

func TestRegistry_RejectsDuplicatesAndInvalid(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(Scenario{Name: "one", Run: noopRun}))

	assert.Error(t, reg.Add(Scenario{Name: "one", Run: noopRun}))
	assert.Error(t, reg.Add(Scenario{Name: "", Run: noopRun}))
	assert.Error(t, reg.Add(Scenario{Name: "no-run"}))

	assert.Panics(t, func() {
		reg.MustAdd(Scenario{Name: "one", Run: noopRun})
	})
}

func TestSelect_EmptySelectionReturnsEverything(t *testing.T) {
	reg := NewRegistry()
	reg.MustAdd(Scenario{Name: "a", Run: noopRun})
	reg.MustAdd(Scenario{Name: "b", Run: noopRun})

	selected, err := reg.Select(nil)
	require.NoError(t, err)
	assert.Len(t, selected, 2)
}

func TestSelect_FiltersWithoutReordering(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"a", "b", "c", "d"} {
		reg.MustAdd(Scenario{Name: name, Run: noopRun})
	}

	// Selection order does not matter, registration order does.
	selected, err := reg.Select([]string{"d", "b"})
	require.NoError(t, err)

	var names []string
	for _, s := range selected {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"b", "d"}, names)
}

func TestSelect_UnknownNameFailsLoudly(t *testing.T) {
	reg := NewRegistry()
	reg.MustAdd(Scenario{Name: "known", Run: noopRun})

	_, err := reg.Select([]string{"known", "typo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown scenario "typo"`)
	assert.Contains(t, err.Error(), "known")
}

func TestSelect_IgnoresBlankEntries(t *testing.T) {
	reg := NewRegistry()
	reg.MustAdd(Scenario{Name: "a", Run: noopRun})

	selected, err := reg.Select([]string{" ", "a", ""})
	require.NoError(t, err)
	assert.Len(t, selected, 1)
}
