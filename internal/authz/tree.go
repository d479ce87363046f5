package authz

import (
	"sort"

	"smartcrm/internal/models"
)

// BuildTree nests a flat permission list by parent id. Orphans become roots.
func BuildTree(flat []models.Permission) []*models.PermissionNode {
	nodes := make(map[int]*models.PermissionNode, len(flat))
	for _, p := range flat {
		nodes[p.ID] = &models.PermissionNode{Permission: p, Children: []*models.PermissionNode{}}
	}
	var roots []*models.PermissionNode
	for _, p := range flat {
		n := nodes[p.ID]
		if p.ParentID != nil {
			if parent, ok := nodes[*p.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*models.PermissionNode) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Key < nodes[j].Key })
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}
