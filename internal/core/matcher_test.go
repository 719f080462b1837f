package core

import "testing"

func intPtr(v int) *int { return &v }

func TestCanValidateAdminAlwaysEligible(t *testing.T) {
	for _, urgency := range []ClinicalUrgency{UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyCritical} {
		if !CanValidate(RoleAdmin, nil, urgency, 10) {
			t.Fatalf("admin should be eligible for %s urgency", urgency)
		}
	}
}

func TestCanValidateCritical(t *testing.T) {
	cases := []struct {
		name       string
		role       ValidatorRole
		experience *int
		want       bool
	}{
		{"cardiologist without experience", RoleCardiologist, nil, true},
		{"cardiologist junior", RoleCardiologist, intPtr(1), true},
		{"physician at floor", RolePhysician, intPtr(10), true},
		{"physician above floor", RolePhysician, intPtr(15), true},
		{"physician below floor", RolePhysician, intPtr(9), false},
		{"physician unknown experience", RolePhysician, nil, false},
		{"technician veteran", RoleTechnician, intPtr(30), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CanValidate(tc.role, tc.experience, UrgencyCritical, 10)
			if got != tc.want {
				t.Fatalf("CanValidate(%s, critical) = %v, want %v", tc.role, got, tc.want)
			}
		})
	}
}

func TestCanValidateHigh(t *testing.T) {
	if CanValidate(RoleTechnician, intPtr(20), UrgencyHigh, 10) {
		t.Fatalf("technician should not be eligible for high urgency")
	}
	if !CanValidate(RolePhysician, nil, UrgencyHigh, 10) {
		t.Fatalf("physician should be eligible for high urgency regardless of experience")
	}
	if !CanValidate(RoleCardiologist, nil, UrgencyHigh, 10) {
		t.Fatalf("cardiologist should be eligible for high urgency")
	}
}

func TestCanValidateRoutine(t *testing.T) {
	for _, urgency := range []ClinicalUrgency{UrgencyLow, UrgencyNormal} {
		for _, role := range []ValidatorRole{RoleTechnician, RolePhysician, RoleCardiologist} {
			if !CanValidate(role, nil, urgency, 10) {
				t.Fatalf("%s should be eligible for %s urgency", role, urgency)
			}
		}
	}
	if CanValidate(ValidatorRole("janitor"), intPtr(40), UrgencyLow, 10) {
		t.Fatalf("unknown role should never be eligible")
	}
}
