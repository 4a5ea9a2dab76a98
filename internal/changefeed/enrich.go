package changefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/report"
)

// applyMember handles organisation and project membership rows. Inserts and
// updates resolve the member's profile off the loop; when two events for the
// same row overlap, only the most recently received one is applied.
func (m *Multiplexer) applyMember(ctx context.Context, a *activation, e Event) error {
	id, err := e.ID()
	if err != nil {
		return err
	}
	key := e.Table + "/" + id

	if e.Kind == KindDelete {
		m.enrichM.Lock()
		delete(m.pending, key)
		m.removeMember(e.Table, id)
		m.enrichM.Unlock()
		m.engine.Reconcile()
		m.applied(e)
		return nil
	}
	if e.Kind != KindInsert && e.Kind != KindUpdate {
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}

	var row struct {
		ProfileID string `json:"profile_id"`
	}
	if err := json.Unmarshal(e.Record, &row); err != nil {
		return fmt.Errorf("decoding %s row: %w", e.Table, err)
	}
	// Validate the full row before going async.
	if _, err := decodeMember(e.Table, e.Record, nil); err != nil {
		return err
	}

	m.enrichM.Lock()
	m.nextSeq++
	mine := m.nextSeq
	m.pending[key] = mine
	m.enrichM.Unlock()

	a.enrich.Add(1)
	go func() {
		defer a.enrich.Done()
		defer m.applied(e)

		profile := m.resolveProfile(ctx, e.Table, id, row.ProfileID)

		m.enrichM.Lock()
		if m.pending[key] != mine {
			m.enrichM.Unlock()
			m.logger.Debug("stale member resolution dropped")
			return
		}
		delete(m.pending, key)
		rec, _ := decodeMember(e.Table, e.Record, profile)
		m.putMember(e.Kind, rec)
		m.enrichM.Unlock()

		m.engine.Reconcile()
	}()
	return nil
}

func (m *Multiplexer) resolveProfile(ctx context.Context, table, id, profileID string) *domain.Profile {
	if p, ok := m.stores.Profiles.Get(profileID); ok {
		return &p
	}
	if m.profiles == nil {
		m.sink.Report(report.Failure{Kind: report.KindEnrichment, Op: "lookup", Entity: table, ID: id,
			Err: fmt.Errorf("profile %s not cached and no lookup configured", profileID)})
		return nil
	}
	p, err := m.profiles.GetByID(ctx, profileID)
	if err != nil {
		m.sink.Report(report.Failure{Kind: report.KindEnrichment, Op: "lookup", Entity: table, ID: id,
			Err: fmt.Errorf("resolving profile %s: %w", profileID, err)})
		return nil
	}
	m.stores.Profiles.Add(*p)
	return p
}

// decodeMember returns a domain.OrganisationProfile or domain.ProjectProfile.
func decodeMember(table string, row json.RawMessage, profile *domain.Profile) (any, error) {
	switch table {
	case TableOrganisationMembers:
		var ms domain.OrganisationMembership
		if err := json.Unmarshal(row, &ms); err != nil {
			return nil, fmt.Errorf("decoding %s row: %w", table, err)
		}
		return domain.OrganisationProfile{OrganisationMembership: ms, Profile: profile}, nil
	case TableProjectMembers:
		var ms domain.ProjectMembership
		if err := json.Unmarshal(row, &ms); err != nil {
			return nil, fmt.Errorf("decoding %s row: %w", table, err)
		}
		return domain.ProjectProfile{ProjectMembership: ms, Profile: profile}, nil
	}
	return nil, ErrUnknownTable
}

// putMember must be called with enrichM held. Updates only replace rows that
// are already present.
func (m *Multiplexer) putMember(kind Kind, rec any) {
	switch v := rec.(type) {
	case domain.OrganisationProfile:
		if kind == KindUpdate && !m.stores.OrganisationMembers.Has(v.ID) {
			return
		}
		m.stores.OrganisationMembers.Add(v)
	case domain.ProjectProfile:
		if kind == KindUpdate && !m.stores.ProjectMembers.Has(v.ID) {
			return
		}
		m.stores.ProjectMembers.Add(v)
	}
}

func (m *Multiplexer) removeMember(table, id string) {
	switch table {
	case TableOrganisationMembers:
		m.stores.OrganisationMembers.Delete(id)
	case TableProjectMembers:
		m.stores.ProjectMembers.Delete(id)
	}
}
