package handler

import (
	dErrors "screenflow/pkg/domain-errors"
)

type CreateSessionRequest struct {
	PatientID     string `json:"patient_id"`
	ScreeningType string `json:"screening_type"`
}

func (r CreateSessionRequest) Validate() error {
	if r.PatientID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "patient_id is required")
	}
	if r.ScreeningType == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "screening_type is required")
	}
	return nil
}

type UpdateStepRequest struct {
	Data     map[string]any `json:"data"`
	Complete bool           `json:"complete"`
}

func (r UpdateStepRequest) Validate() error {
	if len(r.Data) == 0 && !r.Complete {
		return dErrors.New(dErrors.CodeInvalidInput, "a data patch or the complete flag is required")
	}
	return nil
}

type AssignStepRequest struct {
	AssignedTo   string `json:"assigned_to"`
	AssigneeRole string `json:"assignee_role"`
	Priority     string `json:"priority,omitempty"`
}

func (r AssignStepRequest) Validate() error {
	if r.AssignedTo == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "assigned_to is required")
	}
	if r.AssigneeRole == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "assignee_role is required")
	}
	return nil
}

type RequestApprovalRequest struct {
	ApprovalType           string `json:"approval_type"`
	Notes                  string `json:"notes,omitempty"`
	RequiresSecondApproval bool   `json:"requires_second_approval,omitempty"`
}

func (r RequestApprovalRequest) Validate() error {
	if r.ApprovalType == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "approval_type is required")
	}
	return nil
}

type ResolveApprovalRequest struct {
	Approved *bool  `json:"approved"`
	Notes    string `json:"notes,omitempty"`
}

func (r ResolveApprovalRequest) Validate() error {
	if r.Approved == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "approved is required")
	}
	return nil
}
