// Package matching implements the admission workflow between patients and
// hospitals. Every operation reads and writes both documents inside a single
// store transaction, so a hospital and its patient never disagree.
package matching

import (
	"context"
	"errors"

	"bedmatch/pkg/apperr"
	"bedmatch/pkg/models"
	"bedmatch/pkg/store"

	"go.uber.org/zap"
)

// Service runs the request/cancel/admit/release/reject transitions
type Service struct {
	store store.Store
	log   *zap.Logger
}

// NewService creates a matching service
func NewService(s store.Store, log *zap.Logger) *Service {
	return &Service{store: s, log: log}
}

// Result is what a transition leaves behind on the hospital
type Result struct {
	Hospital *models.Account
	Patient  *models.Account
}

// ListHospitals returns every hospital projected to its public summary
func (s *Service) ListHospitals(ctx context.Context) ([]models.HospitalSummary, error) {
	hospitals, err := s.store.List(ctx, models.Hospital)
	if err != nil {
		s.log.Error("list hospitals", zap.Error(err))
		return nil, apperr.Internal("Error fetching hospitals", err)
	}
	out := make([]models.HospitalSummary, 0, len(hospitals))
	for _, h := range hospitals {
		out = append(out, h.Summary())
	}
	return out, nil
}

// Request asks hospitalUsername to admit patientUsername. A pending request
// at another hospital is withdrawn first.
func (s *Service) Request(ctx context.Context, patientUsername, hospitalUsername string) (*Result, error) {
	var res Result
	err := s.store.Update(ctx, func(tx store.Tx) error {
		hospital, err := getHospital(tx, hospitalUsername)
		if err != nil {
			return err
		}
		patient, err := tx.Get(patientUsername)
		if err != nil {
			return err
		}
		if !patient.IsPatient() {
			return apperr.InvalidState("Only patients can request admission")
		}
		if patient.State == models.StateAdmitted {
			return apperr.InvalidState("Patient is already admitted")
		}

		if patient.State == models.StatePending && patient.To != "" && patient.To != hospital.Username {
			if err := withdraw(tx, patient.To, patient.Username); err != nil {
				return err
			}
		}

		patient.State = models.StatePending
		patient.To = hospital.Username
		if err := tx.Put(patient); err != nil {
			return err
		}

		if _, ok := hospital.Requests[patient.Username]; !ok {
			hospital.Requests[patient.Username] = models.Entry{Name: patient.Name}
			if err := tx.Put(hospital); err != nil {
				return err
			}
		}
		res = Result{Hospital: hospital, Patient: patient}
		return nil
	})
	if err != nil {
		return nil, s.fail("Error processing request", err, patientUsername, hospitalUsername)
	}
	s.log.Info("admission requested",
		zap.String("patient", patientUsername),
		zap.String("hospital", hospitalUsername))
	return &res, nil
}

// Cancel withdraws the patient's pending request, if any, and resets the
// patient to idle. Admitted patients must be released by their hospital.
func (s *Service) Cancel(ctx context.Context, patientUsername string) (*Result, error) {
	var res Result
	err := s.store.Update(ctx, func(tx store.Tx) error {
		patient, err := tx.Get(patientUsername)
		if err != nil {
			return err
		}
		if !patient.IsPatient() {
			return apperr.InvalidState("Only patients can cancel a request")
		}
		if patient.State == models.StateAdmitted {
			return apperr.InvalidState("Admitted patients must be released by the hospital")
		}

		if patient.To != "" {
			if err := withdraw(tx, patient.To, patient.Username); err != nil {
				return err
			}
			if h, err := tx.Get(patient.To); err == nil {
				res.Hospital = h
			}
		}

		patient.State = models.StateIdle
		patient.To = ""
		res.Patient = patient
		return tx.Put(patient)
	})
	if err != nil {
		return nil, s.fail("Error canceling request", err, patientUsername, "")
	}
	s.log.Info("admission request cancelled", zap.String("patient", patientUsername))
	return &res, nil
}

// Admit moves a pending patient into the hospital's admissions and takes a
// bed. emptyBeds never drops below zero.
func (s *Service) Admit(ctx context.Context, hospitalUsername, patientUsername string) (*Result, error) {
	var res Result
	err := s.store.Update(ctx, func(tx store.Tx) error {
		hospital, err := getHospital(tx, hospitalUsername)
		if err != nil {
			return err
		}
		patient, err := getPatient(tx, patientUsername)
		if err != nil {
			return err
		}
		if _, ok := hospital.Requests[patient.Username]; !ok {
			return apperr.InvalidState("No pending request from this patient")
		}

		hospital.Admits[patient.Username] = models.Entry{Name: patient.Name}
		delete(hospital.Requests, patient.Username)
		hospital.EmptyBeds = max(0, hospital.EmptyBeds-1)
		if err := tx.Put(hospital); err != nil {
			return err
		}

		patient.State = models.StateAdmitted
		patient.To = hospital.Username
		res = Result{Hospital: hospital, Patient: patient}
		return tx.Put(patient)
	})
	if err != nil {
		return nil, s.fail("Error admitting user", err, patientUsername, hospitalUsername)
	}
	s.log.Info("patient admitted",
		zap.String("patient", patientUsername),
		zap.String("hospital", hospitalUsername),
		zap.Int("empty_beds", res.Hospital.EmptyBeds))
	return &res, nil
}

// Release discharges an admitted patient and frees a bed. emptyBeds never
// exceeds totalBeds.
func (s *Service) Release(ctx context.Context, hospitalUsername, patientUsername string) (*Result, error) {
	var res Result
	err := s.store.Update(ctx, func(tx store.Tx) error {
		hospital, err := getHospital(tx, hospitalUsername)
		if err != nil {
			return err
		}
		if _, ok := hospital.Admits[patientUsername]; !ok {
			return apperr.InvalidState("Patient not admitted here")
		}
		patient, err := getPatient(tx, patientUsername)
		if err != nil {
			return err
		}

		delete(hospital.Admits, patient.Username)
		hospital.EmptyBeds = min(hospital.TotalBeds, hospital.EmptyBeds+1)
		if err := tx.Put(hospital); err != nil {
			return err
		}

		patient.State = models.StateIdle
		patient.To = ""
		res = Result{Hospital: hospital, Patient: patient}
		return tx.Put(patient)
	})
	if err != nil {
		return nil, s.fail("Error releasing user", err, patientUsername, hospitalUsername)
	}
	s.log.Info("patient released",
		zap.String("patient", patientUsername),
		zap.String("hospital", hospitalUsername),
		zap.Int("empty_beds", res.Hospital.EmptyBeds))
	return &res, nil
}

// Reject drops a pending request. The patient is reset only if it is still
// linked to this hospital.
func (s *Service) Reject(ctx context.Context, hospitalUsername, patientUsername string) (*Result, error) {
	var res Result
	err := s.store.Update(ctx, func(tx store.Tx) error {
		hospital, err := getHospital(tx, hospitalUsername)
		if err != nil {
			return err
		}
		patient, err := getPatient(tx, patientUsername)
		if err != nil {
			return err
		}

		if _, ok := hospital.Requests[patient.Username]; ok {
			delete(hospital.Requests, patient.Username)
			if err := tx.Put(hospital); err != nil {
				return err
			}
		}

		res = Result{Hospital: hospital, Patient: patient}
		if patient.To != hospital.Username || patient.State == models.StateAdmitted {
			return nil
		}
		patient.State = models.StateIdle
		patient.To = ""
		return tx.Put(patient)
	})
	if err != nil {
		return nil, s.fail("Error rejecting user", err, patientUsername, hospitalUsername)
	}
	s.log.Info("admission request rejected",
		zap.String("patient", patientUsername),
		zap.String("hospital", hospitalUsername))
	return &res, nil
}

func getHospital(tx store.Tx, username string) (*models.Account, error) {
	a, err := tx.Get(username)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !a.IsHospital()) {
		return nil, apperr.NotFound("Hospital not found")
	}
	return a, err
}

func getPatient(tx store.Tx, username string) (*models.Account, error) {
	a, err := tx.Get(username)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !a.IsPatient()) {
		return nil, apperr.NotFound("Patient not found")
	}
	return a, err
}

// withdraw removes patientUsername from the hospital's pending requests.
// A hospital that no longer exists is not an error.
func withdraw(tx store.Tx, hospitalUsername, patientUsername string) error {
	hospital, err := tx.Get(hospitalUsername)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, ok := hospital.Requests[patientUsername]; !ok {
		return nil
	}
	delete(hospital.Requests, patientUsername)
	return tx.Put(hospital)
}

// fail classifies err; unclassified errors are logged and hidden behind msg
func (s *Service) fail(msg string, err error, patient, hospital string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("User not found")
	}
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	s.log.Error(msg,
		zap.String("patient", patient),
		zap.String("hospital", hospital),
		zap.Error(err))
	return apperr.Internal(msg, err)
}
