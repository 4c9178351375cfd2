// Package directory is the read-only boundary to the patient/clinical
// record store. The coordinator looks up display names by patient id and
// never mutates anything behind this interface.
package directory

import (
	"context"
	"sync"

	id "screenflow/pkg/domain"
	"screenflow/pkg/platform/sentinel"
)

// PatientDirectory resolves patient ids to display names.
type PatientDirectory interface {
	// DisplayName returns the patient's display name, or
	// sentinel.ErrNotFound for an unknown patient id.
	DisplayName(ctx context.Context, patientID id.PatientID) (string, error)
}

// StaticDirectory is an in-memory directory for tests and local
// development.
type StaticDirectory struct {
	mu       sync.RWMutex
	patients map[id.PatientID]string
}

func NewStaticDirectory(patients map[id.PatientID]string) *StaticDirectory {
	if patients == nil {
		patients = map[id.PatientID]string{}
	}
	return &StaticDirectory{patients: patients}
}

func (d *StaticDirectory) DisplayName(_ context.Context, patientID id.PatientID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.patients[patientID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return name, nil
}

// Add registers a patient. Test helper.
func (d *StaticDirectory) Add(patientID id.PatientID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patients[patientID] = name
}
