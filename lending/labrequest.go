package lending

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"scilems/metrics"
	"scilems/models"
	"scilems/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type LabRequestInput struct {
	Lab         string
	Title       string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
}

// LabSchedule is an approved booking as every borrower sees it.
type LabSchedule struct {
	models.LabRequest
	BorrowerName string `json:"borrowerName,omitempty"`
}

type LabRequestsView struct {
	Approved []LabSchedule      `json:"approved"`
	Mine     []models.LabRequest `json:"mine"`
}

// CreateLabRequest files a pending lab booking for borrowerID.
func (s *Service) CreateLabRequest(ctx context.Context, borrowerID primitive.ObjectID, in LabRequestInput) (*models.LabRequest, error) {
	lab, title := strings.TrimSpace(in.Lab), strings.TrimSpace(in.Title)
	if lab == "" || title == "" || in.StartDate == nil || in.EndDate == nil {
		return nil, NewValidationError("lab, title, startDate and endDate are required")
	}
	if in.StartDate.After(*in.EndDate) {
		return nil, NewValidationError("startDate must not be after endDate")
	}

	now := s.now()
	lr := &models.LabRequest{
		BorrowerID:  borrowerID,
		Lab:         lab,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		StartDate:   *in.StartDate,
		EndDate:     *in.EndDate,
		Status:      models.LabPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.labRequests.Insert(ctx, lr); err != nil {
		return nil, fmt.Errorf("insert lab request: %w", err)
	}
	s.log.Info("lab request created",
		zap.String("lab_request_id", lr.ID.Hex()), zap.String("lab", lab))
	return lr, nil
}

// LabRequests returns every approved booking plus all of the borrower's own
// requests.
func (s *Service) LabRequests(ctx context.Context, borrowerID primitive.ObjectID) (*LabRequestsView, error) {
	approved, err := s.labRequests.List(ctx, store.LabRequestFilter{Statuses: []models.LabStatus{models.LabApproved}})
	if err != nil {
		return nil, fmt.Errorf("list approved lab requests: %w", err)
	}
	mine, err := s.labRequests.List(ctx, store.LabRequestFilter{BorrowerID: borrowerID})
	if err != nil {
		return nil, fmt.Errorf("list lab requests: %w", err)
	}

	names := map[primitive.ObjectID]string{}
	view := &LabRequestsView{Approved: make([]LabSchedule, 0, len(approved)), Mine: mine}
	for _, lr := range approved {
		name, ok := names[lr.BorrowerID]
		if !ok {
			if u, err := s.users.GetUser(ctx, lr.BorrowerID); err == nil {
				name = u.FullName()
			} else if !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("load borrower: %w", err)
			}
			names[lr.BorrowerID] = name
		}
		view.Approved = append(view.Approved, LabSchedule{LabRequest: lr, BorrowerName: name})
	}
	return view, nil
}

// ListLabRequests is the admin view, optionally narrowed to one status.
func (s *Service) ListLabRequests(ctx context.Context, status string) ([]models.LabRequest, error) {
	var f store.LabRequestFilter
	if status != "" {
		st := models.LabStatus(status)
		switch st {
		case models.LabPending, models.LabApproved, models.LabDeclined, models.LabCancelled:
		default:
			return nil, NewValidationError("unknown lab request status " + status)
		}
		f.Statuses = []models.LabStatus{st}
	}
	out, err := s.labRequests.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list lab requests: %w", err)
	}
	return out, nil
}

// DecideLabRequest approves or declines a pending booking.
func (s *Service) DecideLabRequest(ctx context.Context, adminID, id primitive.ObjectID, approve bool, remarks string) (_ *models.LabRequest, err error) {
	action := "lab_decline"
	if approve {
		action = "lab_approve"
	}
	defer func() { metrics.Transition(action, err) }()

	now := s.now()
	d := models.LabDecision{
		Status:    models.LabDeclined,
		AdminID:   adminID,
		Remarks:   strings.TrimSpace(remarks),
		UpdatedAt: now,
	}
	if approve {
		d.Status = models.LabApproved
		d.DateApproved = models.TimePtr(now)
	}

	lr, err := s.labRequests.Decide(ctx, id, []models.LabStatus{models.LabPending}, d)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, NewNotFoundError("lab request not found")
	case errors.Is(err, store.ErrStatusConflict):
		return nil, NewInvalidTransitionError("only pending lab requests can be decided")
	case err != nil:
		return nil, fmt.Errorf("decide lab request %s: %w", id.Hex(), err)
	}
	s.log.Info("lab request decided",
		zap.String("lab_request_id", id.Hex()), zap.String("status", string(lr.Status)))
	return lr, nil
}

// DeleteLabRequest lets the owner withdraw a booking that is not approved.
func (s *Service) DeleteLabRequest(ctx context.Context, actor, id primitive.ObjectID) error {
	lr, err := s.labRequests.Get(ctx, id)
	if err != nil {
		return notFound(err, "lab request")
	}
	if lr.BorrowerID != actor {
		return NewUnauthorizedError("not authorized to delete this request")
	}
	if lr.Status == models.LabApproved {
		return NewInvalidTransitionError("cannot delete an approved request")
	}

	err = s.labRequests.Delete(ctx, id, []models.LabStatus{models.LabPending, models.LabDeclined, models.LabCancelled})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return NewNotFoundError("lab request not found")
	case errors.Is(err, store.ErrStatusConflict):
		return NewInvalidTransitionError("cannot delete an approved request")
	case err != nil:
		return fmt.Errorf("delete lab request %s: %w", id.Hex(), err)
	}
	return nil
}
