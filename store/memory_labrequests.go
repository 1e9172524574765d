package store

import (
	"context"
	"slices"
	"sort"

	"scilems/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memLabRequests struct{ m *Memory }

func (r memLabRequests) Insert(_ context.Context, lr *models.LabRequest) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if lr.ID.IsZero() {
		lr.ID = primitive.NewObjectID()
	}
	r.m.labRequests[lr.ID] = *lr
	return nil
}

func (r memLabRequests) Get(_ context.Context, id primitive.ObjectID) (*models.LabRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	lr, ok := r.m.labRequests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &lr, nil
}

func (r memLabRequests) List(_ context.Context, f LabRequestFilter) ([]models.LabRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.LabRequest{}
	for _, lr := range r.m.labRequests {
		if !f.BorrowerID.IsZero() && lr.BorrowerID != f.BorrowerID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, lr.Status) {
			continue
		}
		out = append(out, lr)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r memLabRequests) Decide(_ context.Context, id primitive.ObjectID, from []models.LabStatus, d models.LabDecision) (*models.LabRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	lr, ok := r.m.labRequests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if len(from) > 0 && !slices.Contains(from, lr.Status) {
		return nil, ErrStatusConflict
	}
	d.Apply(&lr)
	r.m.labRequests[id] = lr
	return &lr, nil
}

func (r memLabRequests) Delete(_ context.Context, id primitive.ObjectID, from []models.LabStatus) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	lr, ok := r.m.labRequests[id]
	if !ok {
		return ErrNotFound
	}
	if len(from) > 0 && !slices.Contains(from, lr.Status) {
		return ErrStatusConflict
	}
	delete(r.m.labRequests, id)
	return nil
}
