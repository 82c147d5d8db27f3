package circuits

// HasPermission is a pure function of (circuit, actor, permission): the
// owner holds every permission; an Admin or Member holds its built-in
// role's set, and a Custom member holds only the permissions listed for
// its custom role in c.CustomRoles (the two are not combined); non-members
// hold only the
// read-only subset implied by the circuit's public-visibility setting.
func HasPermission(c Circuit, actorID string, p Permission) bool {
	if actorID == c.OwnerID {
		return true
	}

	member, isMember := findMember(c, actorID)
	if !isMember {
		return c.Permissions.PublicVisibility && isPublicReadPermission(p)
	}

	switch member.Role {
	case RoleAdmin:
		return containsPermission(adminPermissions, p)
	case RoleMember:
		return containsPermission(memberPermissions, p)
	case RoleCustom:
		return containsPermission(c.CustomRoles[member.CustomRole], p)
	default:
		return false
	}
}

func isPublicReadPermission(p Permission) bool {
	return p == PermissionPull || p == PermissionPublicPull
}

func findMember(c Circuit, userID string) (Member, bool) {
	for _, m := range c.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

func containsPermission(list []Permission, p Permission) bool {
	for _, item := range list {
		if item == p {
			return true
		}
	}
	return false
}
