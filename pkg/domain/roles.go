package domain

// Role is the staff role supplied by the identity provider. The coordinator
// trusts this value; it performs no credential verification of its own.
type Role string

const (
	RoleNurse        Role = "nurse"
	RoleDoctor       Role = "doctor"
	RoleMedicalStaff Role = "medical_staff"
	RoleSupervisor   Role = "supervisor"
)

// IsValid reports whether the role is one the coordinator recognizes.
func (r Role) IsValid() bool {
	switch r {
	case RoleNurse, RoleDoctor, RoleMedicalStaff, RoleSupervisor:
		return true
	}
	return false
}

// CanApprove reports whether the role carries the approval permission.
// Sign-off on a finished screening is restricted to doctors and supervisors.
func (r Role) CanApprove() bool {
	return r == RoleDoctor || r == RoleSupervisor
}
