package core

// CanValidate reports whether a validator with the given role and experience
// may confirm an analysis of the given urgency. criticalFloor is the
// configured minimum experience, in years, for a physician to take a
// critical-urgency case.
//
// The function is pure and deterministic: admins are always eligible;
// critical cases require a cardiologist or a sufficiently experienced
// physician (unknown experience is treated as insufficient); high-urgency
// cases require at least a physician; everything else accepts any clinical
// role.
func CanValidate(role ValidatorRole, experienceYears *int, urgency ClinicalUrgency, criticalFloor int) bool {
	if role == RoleAdmin {
		return true
	}
	switch urgency {
	case UrgencyCritical:
		if role == RoleCardiologist {
			return true
		}
		return role == RolePhysician && experienceYears != nil && *experienceYears >= criticalFloor
	case UrgencyHigh:
		return role == RolePhysician || role == RoleCardiologist
	default:
		return role == RoleTechnician || role == RolePhysician || role == RoleCardiologist
	}
}
