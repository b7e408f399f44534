package accesscontrol

type RoleName string

const (
	RoleAdmin     RoleName = "admin"
	RoleModerator RoleName = "moderator"
	RoleUser      RoleName = "user"
)

// ModerationRoles may issue manual moderation decisions.
var ModerationRoles = []RoleName{RoleModerator, RoleAdmin}
