package models

// Role is the access level stored in usuarios.rol.
type Role string

const (
	RoleAdministrator Role = "administrador"
	RoleOwner         Role = "propietario"
	RoleSalesperson   Role = "vendedor"
)

// CrossBranch reports whether the role may operate on every branch.
func (r Role) CrossBranch() bool {
	return r == RoleAdministrator || r == RoleOwner
}
