// Package circuits implements the permissioned sharing repository: members,
// roles, join requests, and push/pull workflow over the Identity Engine,
// Event Engine, and a configured Storage Adapter.
package circuits

import "time"

// Permission is one grantable capability within a circuit.
type Permission string

const (
	PermissionPush              Permission = "Push"
	PermissionPull               Permission = "Pull"
	PermissionInvite             Permission = "Invite"
	PermissionManageMembers      Permission = "ManageMembers"
	PermissionManagePermissions  Permission = "ManagePermissions"
	PermissionManageRoles        Permission = "ManageRoles"
	PermissionPublicPush         Permission = "PublicPush"
	PermissionPublicPull         Permission = "PublicPull"
	PermissionAdapterOperate     Permission = "AdapterOperate"
)

// Role is a built-in role name; custom roles are stored by name with an
// explicit permission list in Circuit.CustomRoles.
type Role string

const (
	RoleOwner  Role = "Owner"
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
	RoleCustom Role = "Custom"
)

var adminPermissions = []Permission{
	PermissionPush, PermissionPull, PermissionInvite,
	PermissionManageMembers, PermissionManagePermissions, PermissionManageRoles,
}

var memberPermissions = []Permission{PermissionPush, PermissionPull}

// Member is one circuit membership record.
type Member struct {
	UserID     string
	Role       Role
	CustomRole string
	JoinedAt   time.Time
}

// Permissions is the circuit-level policy block.
type Permissions struct {
	RequirePushApproval bool
	RequirePullApproval bool
	PublicVisibility    bool
	AllowedNamespaces   []string
	AutoApproveMembers  bool
}

// AdapterRef names which AdapterConfig a circuit uses, and whether the
// circuit sponsors adapter credentials on members' behalf.
type AdapterRef struct {
	ConfigID  string
	Sponsored bool
}

// JoinRequestStatus is the state of a pending membership request.
type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "Pending"
	JoinRequestApproved JoinRequestStatus = "Approved"
	JoinRequestRejected JoinRequestStatus = "Rejected"
)

// JoinRequest is a request to join a circuit.
type JoinRequest struct {
	ID          string
	UserID      string
	Status      JoinRequestStatus
	RequestedAt time.Time
	ResolvedAt  time.Time
}

// Circuit is a named permissioned repository.
type Circuit struct {
	ID           string
	Name         string
	OwnerID      string
	Members      []Member
	CustomRoles  map[string][]Permission
	Permissions  Permissions
	DefaultNamespace string
	AutoApplyNamespace bool
	UseFingerprint bool
	RequiredCanonical []string
	RequiredContextual []string
	Adapter      AdapterRef
	JoinRequests []JoinRequest
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OperationKind distinguishes push from pull requests.
type OperationKind string

const (
	OperationPush OperationKind = "Push"
	OperationPull OperationKind = "Pull"
)

// OperationState is the lifecycle state of a CircuitOperation.
type OperationState string

const (
	OperationPending   OperationState = "Pending"
	OperationApproved  OperationState = "Approved"
	OperationCompleted OperationState = "Completed"
	OperationRejected  OperationState = "Rejected"
)

// StorageLocation is what a Storage Adapter returns after storing an item.
type StorageLocation struct {
	PrimaryLocation    string
	SecondaryLocations []string
	AnchorTxHash       string
	ContractAddress    string
}

// PushResult is the outcome of PushLocalItem.
type PushResult struct {
	GID            string
	ResolveStatus  string
	Location       *StorageLocation
	OperationID    string
	Pending        bool
}
