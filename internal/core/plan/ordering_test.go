package plan

import (
	"testing"

	"github.com/lakeward/airlocal/internal/core/compose"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// TopologicalSort Tests
// =============================================================================

func TestTopologicalSort_Empty(t *testing.T) {
	result := TopologicalSort([]compose.Service{})
	assert.Empty(t, result)
}

func TestTopologicalSort_SingleService(t *testing.T) {
	services := []compose.Service{
		{Name: "postgres"},
	}
	result := TopologicalSort(services)
	assert.Len(t, result, 1)
	assert.Equal(t, "postgres", result[0].Name)
}

func TestTopologicalSort_ResetStack(t *testing.T) {
	// resetdb depends on postgres, so postgres must start first
	services := []compose.Service{
		{Name: "resetdb", DependsOn: []string{"postgres"}},
		{Name: "postgres"},
	}
	result := TopologicalSort(services)

	assert.Len(t, result, 2)
	assert.Equal(t, "postgres", result[0].Name)
	assert.Equal(t, "resetdb", result[1].Name)
}

func TestTopologicalSort_NoDependencies(t *testing.T) {
	services := []compose.Service{
		{Name: "a"},
		{Name: "b"},
		{Name: "c"},
	}
	result := TopologicalSort(services)
	assert.Len(t, result, 3)

	names := make(map[string]bool)
	for _, s := range result {
		names[s.Name] = true
	}
	assert.True(t, names["a"])
	assert.True(t, names["b"])
	assert.True(t, names["c"])
}

func TestTopologicalSort_LinearChain(t *testing.T) {
	services := []compose.Service{
		{Name: "webserver", DependsOn: []string{"scheduler"}},
		{Name: "scheduler", DependsOn: []string{"postgres"}},
		{Name: "postgres"},
	}
	result := TopologicalSort(services)

	indices := make(map[string]int)
	for i, s := range result {
		indices[s.Name] = i
	}
	assert.Less(t, indices["postgres"], indices["scheduler"])
	assert.Less(t, indices["scheduler"], indices["webserver"])
}

func TestTopologicalSort_CycleFallback(t *testing.T) {
	// Cycles are rejected at parse time; the sort still returns every
	// service rather than dropping them.
	services := []compose.Service{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a"}},
	}
	result := TopologicalSort(services)
	assert.Len(t, result, 2)
}
