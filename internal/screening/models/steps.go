package models

import (
	dErrors "screenflow/pkg/domain-errors"
	id "screenflow/pkg/domain"
)

// Step is one stage in the fixed ordered screening workflow.
type Step string

const (
	StepRegistration Step = "registration"
	StepVitals       Step = "vitals"
	StepAssessment   Step = "assessment"
	StepDiagnosis    Step = "diagnosis"
	StepDisposition  Step = "disposition"
)

// stepSequence is the authoritative order. Every session carries exactly
// one StepState per entry, fixed at creation.
var stepSequence = []Step{
	StepRegistration,
	StepVitals,
	StepAssessment,
	StepDiagnosis,
	StepDisposition,
}

// StepSequence returns the ordered step list. Callers get a copy so the
// authoritative slice cannot be mutated.
func StepSequence() []Step {
	out := make([]Step, len(stepSequence))
	copy(out, stepSequence)
	return out
}

// Index returns the position of the step in the sequence, or -1 when the
// step is unknown.
func (s Step) Index() int {
	for i, step := range stepSequence {
		if step == s {
			return i
		}
	}
	return -1
}

// IsValid reports whether the step belongs to the fixed sequence.
func (s Step) IsValid() bool { return s.Index() >= 0 }

// ParseStep validates a raw step name against the fixed sequence.
func ParseStep(raw string) (Step, error) {
	step := Step(raw)
	if !step.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown workflow step %q", raw)
	}
	return step, nil
}

// defaultStepRoles is the static per-step role allow-list used when a step
// has no explicit assignment. Diagnosis is doctor-only; every other step
// permits ad-hoc collaboration across clinical roles.
var defaultStepRoles = map[Step][]id.Role{
	StepRegistration: {id.RoleNurse, id.RoleMedicalStaff, id.RoleDoctor},
	StepVitals:       {id.RoleNurse, id.RoleMedicalStaff, id.RoleDoctor},
	StepAssessment:   {id.RoleNurse, id.RoleMedicalStaff, id.RoleDoctor},
	StepDiagnosis:    {id.RoleDoctor},
	StepDisposition:  {id.RoleNurse, id.RoleMedicalStaff, id.RoleDoctor},
}

// RoleAllowed reports whether the role may work the step under the
// fallback allow-list.
func (s Step) RoleAllowed(role id.Role) bool {
	for _, allowed := range defaultStepRoles[s] {
		if allowed == role {
			return true
		}
	}
	return false
}

// EstimatedDuration is the planning estimate per step, recorded on each
// StepState at session creation so actual durations can be compared.
func (s Step) EstimatedDuration() int {
	// minutes
	switch s {
	case StepRegistration:
		return 10
	case StepVitals:
		return 15
	case StepAssessment:
		return 30
	case StepDiagnosis:
		return 20
	case StepDisposition:
		return 10
	}
	return 0
}
