package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexanderramin/sitesync/internal/auth"
	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/report"
	"github.com/alexanderramin/sitesync/internal/repository"
	"github.com/alexanderramin/sitesync/internal/store"
)

type requestService struct {
	core
}

func NewRequestService(d Deps, observers ...UseCaseObserver) RequestService {
	return &requestService{core: newCore(d, observers)}
}

// Submit files a new pending request. A completion request moves its task
// into review; a material request flags the material as requested.
func (s *requestService) Submit(ctx context.Context, r *domain.Request) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"type": string(r.Type), "requested_to": r.RequestedTo}
	defer func() { s.finish(ctx, "submit-request", startedAt, fields, err) }()

	if r.RequestedBy == "" || r.RequestedTo == "" {
		return fmt.Errorf("%w: request needs a sender and a recipient", ErrInvalidInput)
	}
	data, err := r.DecodeData()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.Status = domain.RequestPending
	r.CreatedAt = startedAt

	var fx effects
	err = s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repos := repository.NewSet(tx, s.Dialect)
		switch d := data.(type) {
		case *domain.TaskCompletionData:
			task, err := repos.Tasks.GetByID(ctx, d.TaskID)
			if err != nil {
				return fmt.Errorf("loading task for completion: %w", err)
			}
			task.Status = domain.StatusReviewing
			if err := saveTask(ctx, repos, task, &fx); err != nil {
				return err
			}
		case *domain.MaterialRequestData:
			m, err := repos.Materials.GetByID(ctx, d.MaterialID)
			if err != nil {
				return fmt.Errorf("loading requested material: %w", err)
			}
			m.Requested = true
			if err := saveMaterial(ctx, repos, m, &fx); err != nil {
				return err
			}
		}
		if err := repos.Requests.Create(ctx, r); err != nil {
			return err
		}
		saved, err := repos.Requests.GetByID(ctx, r.ID)
		if err != nil {
			return err
		}
		fx.request(saved)
		return nil
	})
	if err != nil {
		return err
	}
	s.apply(fx, store.NameRequest, r.ID)
	return nil
}

func (s *requestService) Approve(ctx context.Context, actor auth.Identity, id, response string) (*domain.Request, error) {
	return s.decide(ctx, "approve-request", actor, id, true, response)
}

func (s *requestService) Reject(ctx context.Context, actor auth.Identity, id, reason string) (*domain.Request, error) {
	return s.decide(ctx, "reject-request", actor, id, false, reason)
}

// decide records the decision and applies its consequences in one
// transaction. Only the recipient or an administrator may decide, and only
// while the request is open.
func (s *requestService) decide(ctx context.Context, name string, actor auth.Identity, id string, approve bool, note string) (req *domain.Request, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"id": id}
	defer func() { s.finish(ctx, name, startedAt, fields, err) }()

	var fx effects
	err = s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repos := repository.NewSet(tx, s.Dialect)
		r, err := repos.Requests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		fields["type"] = string(r.Type)
		if !r.IsOpen() {
			return fmt.Errorf("%w: %s is %s", ErrRequestClosed, id, r.Status)
		}
		if actor.UserID != r.RequestedTo && !actor.IsAdmin {
			return ErrNotPermitted
		}
		data, err := r.DecodeData()
		if err != nil {
			return err
		}

		status := domain.RequestRejected
		if approve {
			status = domain.RequestApproved
			err = s.applyApproval(ctx, repos, r, data, &fx)
		} else {
			err = applyRejection(ctx, repos, data, note, &fx)
		}
		if err != nil {
			return err
		}

		if err := repos.Requests.UpdateStatus(ctx, id, status, note); err != nil {
			return err
		}
		req, err = repos.Requests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		fx.request(req)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.apply(fx, store.NameRequest, id)
	return req, nil
}

func (s *requestService) applyApproval(ctx context.Context, repos *repository.Set, r *domain.Request, data any, fx *effects) error {
	switch d := data.(type) {
	case *domain.TaskAssignmentData:
		task, err := repos.Tasks.GetByID(ctx, d.TaskID)
		if err != nil {
			return fmt.Errorf("loading task to assign: %w", err)
		}
		if err := task.Assign(d.Assignee(r)); err != nil {
			return err
		}
		return saveTask(ctx, repos, task, fx)

	case *domain.MaterialRequestData:
		m, err := repos.Materials.GetByID(ctx, d.MaterialID)
		if err != nil {
			return fmt.Errorf("loading requested material: %w", err)
		}
		m.Requested = true
		m.Approved = true
		return saveMaterial(ctx, repos, m, fx)

	case *domain.PaymentRequestData:
		if d.Amount < 0 {
			return fmt.Errorf("%w: payment amount must not be negative", ErrInvalidInput)
		}
		if err := repos.Tasks.AddSpend(ctx, d.TaskID, d.Amount); err != nil {
			return fmt.Errorf("recording payment: %w", err)
		}
		task, err := repos.Tasks.GetByID(ctx, d.TaskID)
		if err != nil {
			return err
		}
		task.PaymentCompleted = true
		if err := saveTask(ctx, repos, task, fx); err != nil {
			return err
		}
		project, err := repos.Projects.GetByID(ctx, task.ProjectID)
		if err != nil {
			return fmt.Errorf("loading project for payment: %w", err)
		}
		project.Spent += d.Amount
		if err := repos.Projects.Update(ctx, project); err != nil {
			return err
		}
		fx.project(project)
		return nil

	case *domain.TaskCompletionData:
		task, err := repos.Tasks.GetByID(ctx, d.TaskID)
		if err != nil {
			return fmt.Errorf("loading task to complete: %w", err)
		}
		task.Complete(d.Notes)
		return saveTask(ctx, repos, task, fx)

	case *domain.JoinOrganisationData:
		m := &domain.OrganisationMembership{
			ID:             uuid.New().String(),
			OrganisationID: d.OrganisationID,
			ProfileID:      r.RequestedBy,
			Role:           domain.RoleEmployee,
		}
		if err := repos.OrganisationMembers.Create(ctx, m); err != nil {
			return err
		}
		profile := s.memberProfile(ctx, repos, m.ProfileID)
		row := *m
		fx.add(func(st *store.Stores) error {
			st.OrganisationMembers.Add(domain.OrganisationProfile{OrganisationMembership: row, Profile: profile})
			return nil
		})
		return nil

	case *domain.JoinProjectData:
		m := &domain.ProjectMembership{
			ID:        uuid.New().String(),
			ProjectID: d.ProjectID,
			ProfileID: r.RequestedBy,
			Role:      domain.RoleEmployee,
		}
		if err := repos.ProjectMembers.Create(ctx, m); err != nil {
			return err
		}
		profile := s.memberProfile(ctx, repos, m.ProfileID)
		row := *m
		fx.add(func(st *store.Stores) error {
			st.ProjectMembers.Add(domain.ProjectProfile{ProjectMembership: row, Profile: profile})
			return nil
		})
		return nil
	}
	return nil
}

func applyRejection(ctx context.Context, repos *repository.Set, data any, reason string, fx *effects) error {
	switch d := data.(type) {
	case *domain.TaskCompletionData:
		task, err := repos.Tasks.GetByID(ctx, d.TaskID)
		if err != nil {
			return fmt.Errorf("loading task under review: %w", err)
		}
		task.RejectCompletion(reason)
		return saveTask(ctx, repos, task, fx)
	case *domain.MaterialRequestData:
		m, err := repos.Materials.GetByID(ctx, d.MaterialID)
		if err != nil {
			return fmt.Errorf("loading requested material: %w", err)
		}
		m.Requested = false
		return saveMaterial(ctx, repos, m, fx)
	}
	return nil
}

// memberProfile resolves the profile for a new membership, preferring the
// store. A miss is reported and leaves the membership un-enriched.
func (s *requestService) memberProfile(ctx context.Context, repos *repository.Set, id string) *domain.Profile {
	if p, ok := s.Stores.Profiles.Get(id); ok {
		return &p
	}
	p, err := repos.Profiles.GetByID(ctx, id)
	if err != nil {
		s.Sink.Report(report.Failure{Kind: report.KindEnrichment, Op: "resolve", Entity: store.NameProfile, ID: id, Err: err})
		return nil
	}
	return p
}

func saveTask(ctx context.Context, repos *repository.Set, t *domain.Task, fx *effects) error {
	if err := repos.Tasks.Update(ctx, t); err != nil {
		return err
	}
	saved, err := repos.Tasks.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	fx.task(saved)
	return nil
}

func saveMaterial(ctx context.Context, repos *repository.Set, m *domain.Material, fx *effects) error {
	if err := repos.Materials.Update(ctx, m); err != nil {
		return err
	}
	fx.material(m)
	return nil
}

func (s *requestService) AttachPhoto(ctx context.Context, id, url string) (err error) {
	startedAt := time.Now().UTC()
	defer func() { s.finish(ctx, "attach-photo", startedAt, map[string]any{"id": id}, err) }()

	if url == "" {
		return fmt.Errorf("%w: photo url is required", ErrInvalidInput)
	}
	if err = s.Repos.Requests.SetPhotoURL(ctx, id, url); err != nil {
		return err
	}
	patch, err := store.PatchOf(map[string]any{"photo_url": url})
	if err != nil {
		return err
	}
	if _, err = s.Stores.Requests.Update(id, patch); err != nil {
		s.Sink.Report(report.Failure{Kind: report.KindConsistency, Op: "attach-photo", Entity: store.NameRequest, ID: id, Err: err})
	}
	return nil
}

func (s *requestService) Delete(ctx context.Context, id string) {
	s.remove(ctx, "delete-request", store.NameRequest, id, s.Repos.Requests.Delete, s.Stores.Requests.Delete)
}
