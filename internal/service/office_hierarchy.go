package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/railway-hrm-api/internal/models"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
)

// OfficeHierarchy is an in-memory view of the office forest together with the
// set of offices that currently have an active office admin.
type OfficeHierarchy struct {
	byID     map[int64]models.Office
	children map[int64][]int64
	roots    []int64
	admins   map[int64]struct{}
}

// NewOfficeHierarchy indexes offices by id and by parent. adminOfficeIDs lists
// offices with at least one active office admin.
func NewOfficeHierarchy(offices []models.Office, adminOfficeIDs []int64) *OfficeHierarchy {
	h := &OfficeHierarchy{
		byID:     make(map[int64]models.Office, len(offices)),
		children: make(map[int64][]int64, len(offices)),
		admins:   make(map[int64]struct{}, len(adminOfficeIDs)),
	}
	for _, o := range offices {
		h.byID[o.ID] = o
	}
	for _, o := range offices {
		if o.ParentID == nil {
			h.roots = append(h.roots, o.ID)
			continue
		}
		if _, ok := h.byID[*o.ParentID]; !ok {
			h.roots = append(h.roots, o.ID)
			continue
		}
		h.children[*o.ParentID] = append(h.children[*o.ParentID], o.ID)
	}
	for parent := range h.children {
		h.sortByName(h.children[parent])
	}
	h.sortByName(h.roots)
	for _, id := range adminOfficeIDs {
		h.admins[id] = struct{}{}
	}
	return h
}

func (h *OfficeHierarchy) sortByName(ids []int64) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := h.byID[ids[i]], h.byID[ids[j]]
		na, nb := strings.TrimSpace(a.Name), strings.TrimSpace(b.Name)
		if na != nb {
			return na < nb
		}
		return a.ID < b.ID
	})
}

// Len returns the number of offices.
func (h *OfficeHierarchy) Len() int { return len(h.byID) }

// Has reports whether id is a known office.
func (h *OfficeHierarchy) Has(id int64) bool {
	_, ok := h.byID[id]
	return ok
}

// Office returns the office with id.
func (h *OfficeHierarchy) Office(id int64) (models.Office, bool) {
	o, ok := h.byID[id]
	return o, ok
}

// IDs returns every office id in ascending order.
func (h *OfficeHierarchy) IDs() []int64 {
	ids := make([]int64, 0, len(h.byID))
	for id := range h.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Children returns the direct children of id.
func (h *OfficeHierarchy) Children(id int64) []int64 {
	return append([]int64(nil), h.children[id]...)
}

// HasActiveAdmin reports whether officeID has at least one active office admin.
func (h *OfficeHierarchy) HasActiveAdmin(officeID int64) bool {
	_, ok := h.admins[officeID]
	return ok
}

// DescendantIDs returns every office below officeID.
func (h *OfficeHierarchy) DescendantIDs(officeID int64) []int64 {
	return h.collect(officeID, func(int64) bool { return true })
}

// AdminlessDescendantIDs returns the descendants of officeID reachable through
// offices without an active admin. A child that has its own admin is excluded
// together with its whole subtree.
func (h *OfficeHierarchy) AdminlessDescendantIDs(officeID int64) []int64 {
	return h.collect(officeID, func(id int64) bool { return !h.HasActiveAdmin(id) })
}

// ManagedOfficeIDs returns officeID plus its adminless descendants.
func (h *OfficeHierarchy) ManagedOfficeIDs(officeID int64) []int64 {
	return append([]int64{officeID}, h.AdminlessDescendantIDs(officeID)...)
}

// collect walks breadth first from officeID, entering only children accepted
// by include. Visited offices are never revisited, so corrupt parent data
// cannot loop.
func (h *OfficeHierarchy) collect(officeID int64, include func(int64) bool) []int64 {
	out := make([]int64, 0)
	visited := map[int64]struct{}{officeID: {}}
	queue := []int64{officeID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range h.children[current] {
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			if !include(child) {
				continue
			}
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// ValidateParent rejects parent assignments that would make officeID its own
// ancestor. officeID may be zero for an office that does not exist yet.
func (h *OfficeHierarchy) ValidateParent(officeID int64, parentID *int64) error {
	if parentID == nil {
		return nil
	}
	if !h.Has(*parentID) {
		return appErrors.Clone(appErrors.ErrValidation, "parent office does not exist")
	}
	if officeID == 0 {
		return nil
	}
	if *parentID == officeID {
		return appErrors.Clone(appErrors.ErrValidation, "an office cannot be its own parent")
	}
	// Walk up from the proposed parent. Reaching officeID means the parent is
	// one of its descendants. The walk is bounded by the number of offices.
	current := *parentID
	for steps := 0; steps <= len(h.byID); steps++ {
		if current == officeID {
			return appErrors.Clone(appErrors.ErrValidation, "an office cannot be moved under one of its own descendants")
		}
		office, ok := h.byID[current]
		if !ok || office.ParentID == nil {
			return nil
		}
		current = *office.ParentID
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("office hierarchy above %d contains a cycle", *parentID))
}

// Tree renders the forest with admin coverage and employee counts per node.
func (h *OfficeHierarchy) Tree(employeeCounts map[int64]int) []*models.OfficeNode {
	visited := make(map[int64]struct{}, len(h.byID))
	var build func(id int64) *models.OfficeNode
	build = func(id int64) *models.OfficeNode {
		visited[id] = struct{}{}
		node := &models.OfficeNode{
			Office:        h.byID[id],
			HasAdmin:      h.HasActiveAdmin(id),
			EmployeeCount: employeeCounts[id],
			Children:      make([]*models.OfficeNode, 0, len(h.children[id])),
		}
		for _, child := range h.children[id] {
			if _, seen := visited[child]; seen {
				continue
			}
			node.Children = append(node.Children, build(child))
		}
		return node
	}

	out := make([]*models.OfficeNode, 0, len(h.roots))
	for _, id := range h.roots {
		out = append(out, build(id))
	}
	if len(visited) != len(h.byID) {
		// Offices trapped in a parent cycle never hang off a root.
		remaining := make([]int64, 0, len(h.byID)-len(visited))
		for _, id := range h.IDs() {
			if _, seen := visited[id]; !seen {
				remaining = append(remaining, id)
			}
		}
		for _, id := range remaining {
			if _, seen := visited[id]; !seen {
				out = append(out, build(id))
			}
		}
	}
	return out
}
