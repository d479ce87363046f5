package models

type Permission struct {
	ID          int    `json:"id"`
	Key         string `json:"permission_key"`
	Name        string `json:"permission_name"`
	ParentID    *int   `json:"parent_id"`
	Category    string `json:"category"`
	Level       int    `json:"level"`
	Description string `json:"description"`
}

type PermissionNode struct {
	Permission
	Children []*PermissionNode `json:"children"`
}

type AssignPermissionsRequest struct {
	PermissionIDs []int `json:"permission_ids"`
}

type CheckPermissionRequest struct {
	PermissionKey string `json:"permission_key" binding:"required"`
}

type UserPermissionsView struct {
	User           *User        `json:"user"`
	Permissions    []Permission `json:"permissions"`
	PermissionKeys []string     `json:"permission_keys"`
}
