// Package rbac maps tenant roles to the actions they may perform.
package rbac

type Role string
type Action string

const (
	RoleViewer     Role = "viewer"
	RoleAnalyst    Role = "analyst"
	RoleNegotiator Role = "negotiator"
	RoleAdmin      Role = "admin"
)

const (
	ActionRead    Action = "read"    // view documents, anchors, search
	ActionIngest  Action = "ingest"  // upload and revise documents
	ActionRedline Action = "redline" // record redline signals and outcomes
	ActionAudit   Action = "audit"   // read the tenant audit trail
	ActionAdmin   Action = "admin"   // manage users and API keys
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleNegotiator:
		return action == ActionRead || action == ActionIngest || action == ActionRedline
	case RoleAnalyst:
		return action == ActionRead || action == ActionIngest || action == ActionAudit
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleAnalyst, RoleNegotiator, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
