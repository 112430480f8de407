package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/railway-hrm-api/internal/models"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
)

func ptr64(v int64) *int64 { return &v }

// railwayOffices models:
//
//	10 Rail Bhaban
//	└── 1 Chittagong Division
//	    ├── 2 Chittagong Station (has admin)
//	    │   └── 3 Station Yard
//	    └── 4 Pahartali Workshop
//	        └── 5 Workshop Stores
func railwayOffices() []models.Office {
	return []models.Office{
		{ID: 10, Name: "Rail Bhaban", Code: "RB"},
		{ID: 1, Name: "Chittagong Division", Code: "CTG-DIV", ParentID: ptr64(10)},
		{ID: 2, Name: "Chittagong Station", Code: "CTG-ST", ParentID: ptr64(1)},
		{ID: 3, Name: "Station Yard", Code: "CTG-YD", ParentID: ptr64(2)},
		{ID: 4, Name: "Pahartali Workshop", Code: "PHT-WS", ParentID: ptr64(1)},
		{ID: 5, Name: "Workshop Stores", Code: "PHT-ST", ParentID: ptr64(4)},
	}
}

func TestOfficeHierarchyDescendants(t *testing.T) {
	h := NewOfficeHierarchy(railwayOffices(), []int64{1, 2})

	assert.ElementsMatch(t, []int64{2, 3, 4, 5}, h.DescendantIDs(1))
	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, h.DescendantIDs(10))
	assert.Empty(t, h.DescendantIDs(5))
	assert.Empty(t, h.DescendantIDs(99))
}

func TestOfficeHierarchyManagedStopsAtAdministeredChild(t *testing.T) {
	h := NewOfficeHierarchy(railwayOffices(), []int64{1, 2})

	managed := h.ManagedOfficeIDs(1)
	assert.ElementsMatch(t, []int64{1, 4, 5}, managed)
	assert.NotContains(t, managed, int64(2))
	assert.NotContains(t, managed, int64(3))
}

func TestOfficeHierarchyManagedAlwaysIncludesSelf(t *testing.T) {
	h := NewOfficeHierarchy(railwayOffices(), []int64{1, 2, 3, 4, 5, 10})
	for _, id := range h.IDs() {
		assert.Contains(t, h.ManagedOfficeIDs(id), id)
	}
	assert.Equal(t, []int64{42}, h.ManagedOfficeIDs(42))
}

func TestOfficeHierarchyDeactivatedAdminWidensParentScope(t *testing.T) {
	h := NewOfficeHierarchy(railwayOffices(), []int64{1})
	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, h.ManagedOfficeIDs(1))
}

func TestOfficeHierarchyValidateParent(t *testing.T) {
	h := NewOfficeHierarchy(railwayOffices(), nil)

	cases := []struct {
		name    string
		office  int64
		parent  *int64
		wantErr bool
	}{
		{name: "root", office: 4, parent: nil},
		{name: "sibling subtree", office: 4, parent: ptr64(2)},
		{name: "new office", office: 0, parent: ptr64(5)},
		{name: "self", office: 4, parent: ptr64(4), wantErr: true},
		{name: "direct child", office: 1, parent: ptr64(4), wantErr: true},
		{name: "deep descendant", office: 10, parent: ptr64(5), wantErr: true},
		{name: "unknown parent", office: 4, parent: ptr64(77), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.ValidateParent(tc.office, tc.parent)
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestOfficeHierarchyTerminatesOnCorruptCycle(t *testing.T) {
	offices := []models.Office{
		{ID: 1, Name: "A", ParentID: ptr64(2)},
		{ID: 2, Name: "B", ParentID: ptr64(1)},
		{ID: 3, Name: "C", ParentID: ptr64(9)},
	}
	h := NewOfficeHierarchy(offices, nil)

	assert.ElementsMatch(t, []int64{2}, h.DescendantIDs(1))
	err := h.ValidateParent(3, ptr64(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	tree := h.Tree(nil)
	seen := 0
	var count func(nodes []*models.OfficeNode)
	count = func(nodes []*models.OfficeNode) {
		for _, n := range nodes {
			seen++
			count(n.Children)
		}
	}
	count(tree)
	assert.Equal(t, 3, seen)
}

func TestOfficeHierarchyTree(t *testing.T) {
	h := NewOfficeHierarchy(railwayOffices(), []int64{2})
	tree := h.Tree(map[int64]int{2: 14, 5: 3})

	require.Len(t, tree, 1)
	root := tree[0]
	assert.Equal(t, int64(10), root.ID)
	require.Len(t, root.Children, 1)
	division := root.Children[0]
	require.Len(t, division.Children, 2)
	assert.Equal(t, "Chittagong Station", division.Children[0].Name)
	assert.True(t, division.Children[0].HasAdmin)
	assert.Equal(t, 14, division.Children[0].EmployeeCount)
	assert.Equal(t, "Pahartali Workshop", division.Children[1].Name)
	assert.False(t, division.Children[1].HasAdmin)
}
