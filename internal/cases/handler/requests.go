package handler

import (
	"strings"

	"caseflow/internal/cases/models"
	"caseflow/internal/cases/service"
	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

type CreateCaseRequest struct {
	ServiceType      string         `json:"service_type"`
	Priority         string         `json:"priority"`
	VehicleID        *int64         `json:"vehicle_id"`
	VehicleData      map[string]any `json:"vehicle_data"`
	RequirementsData map[string]any `json:"requirements_data"`
}

func (r *CreateCaseRequest) ToService() (service.CreateRequest, error) {
	st, err := models.ParseServiceType(strings.TrimSpace(r.ServiceType))
	if err != nil {
		return service.CreateRequest{}, err
	}
	p, err := models.ParsePriority(strings.TrimSpace(r.Priority))
	if err != nil {
		return service.CreateRequest{}, err
	}
	vehicleID, err := parseVehicleID(r.VehicleID)
	if err != nil {
		return service.CreateRequest{}, err
	}
	return service.CreateRequest{
		ServiceType:      st,
		Priority:         p,
		VehicleID:        vehicleID,
		VehicleData:      r.VehicleData,
		RequirementsData: r.RequirementsData,
	}, nil
}

type UpdateCaseRequest struct {
	VehicleID        *int64         `json:"vehicle_id"`
	VehicleData      map[string]any `json:"vehicle_data"`
	RequirementsData map[string]any `json:"requirements_data"`
}

func (r *UpdateCaseRequest) ToService() (service.UpdateRequest, error) {
	vehicleID, err := parseVehicleID(r.VehicleID)
	if err != nil {
		return service.UpdateRequest{}, err
	}
	return service.UpdateRequest{VehicleID: vehicleID, VehicleData: r.VehicleData, RequirementsData: r.RequirementsData}, nil
}

type SubmitCaseRequest struct {
	RequirementsData map[string]any `json:"requirements_data"`
}

type ReviewRequest struct {
	Status          string `json:"status"`
	Notes           string `json:"notes"`
	RejectionReason string `json:"rejection_reason"`
}

func (r *ReviewRequest) ToService() (service.ReviewRequest, error) {
	st, err := models.ParseStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return service.ReviewRequest{}, err
	}
	return service.ReviewRequest{Status: st, Notes: r.Notes, RejectionReason: r.RejectionReason}, nil
}

type RequestInfoRequest struct {
	Message string `json:"message"`
}

func parseVehicleID(id *int64) (*domain.VehicleID, error) {
	if id == nil {
		return nil, nil
	}
	if *id <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "vehicle_id must be positive")
	}
	v := domain.VehicleID(*id)
	return &v, nil
}
