package changefeed

import (
	"encoding/json"
	"fmt"

	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/store"
)

// Server table names.
const (
	TableProfiles            = "profiles"
	TableOrganisations       = "organisations"
	TableOrganisationMembers = "organisation_members"
	TableProjects            = "projects"
	TableProjectMembers      = "project_members"
	TablePhases              = "phases"
	TableTasks               = "tasks"
	TableMaterials           = "materials"
	TableRequests            = "requests"
	TableMaterialPricing     = "material_pricing"
	TableProjectTemplates    = "project_templates"
)

// Tables lists every table the multiplexer subscribes to.
var Tables = []string{
	TableProfiles, TableOrganisations, TableOrganisationMembers, TableProjects,
	TableProjectMembers, TablePhases, TableTasks, TableMaterials, TableRequests,
	TableMaterialPricing, TableProjectTemplates,
}

// effect is what the aggregate engine must do after a table changes.
type effect int

const (
	effectNone effect = iota
	effectReconcile
	effectRun
)

// table applies plain row events to one store.
type table interface {
	add(row json.RawMessage) error
	update(id string, row json.RawMessage) error
	remove(id string)
}

type storeTable[T any] struct {
	s *store.Store[T]
}

func (t storeTable[T]) add(row json.RawMessage) error {
	var v T
	if err := json.Unmarshal(row, &v); err != nil {
		return fmt.Errorf("decoding %s row: %w", t.s.Name(), err)
	}
	t.s.Add(v)
	return nil
}

func (t storeTable[T]) update(id string, row json.RawMessage) error {
	patch, err := store.PatchFromJSON(row)
	if err != nil {
		return err
	}
	_, err = t.s.Update(id, patch)
	return err
}

func (t storeTable[T]) remove(id string) {
	t.s.Delete(id)
}

type binding struct {
	table  table
	effect effect
}

func bindings(s *store.Stores) map[string]binding {
	return map[string]binding{
		TableProfiles:         {storeTable[domain.Profile]{s.Profiles}, effectNone},
		TableOrganisations:    {storeTable[domain.Organisation]{s.Organisations}, effectReconcile},
		TableProjects:         {storeTable[domain.Project]{s.Projects}, effectRun},
		TablePhases:           {storeTable[domain.Phase]{s.Phases}, effectRun},
		TableTasks:            {storeTable[domain.Task]{s.Tasks}, effectRun},
		TableMaterials:        {storeTable[domain.Material]{s.Materials}, effectReconcile},
		TableRequests:         {storeTable[domain.Request]{s.Requests}, effectNone},
		TableMaterialPricing:  {storeTable[domain.MaterialPricing]{s.MaterialPricing}, effectNone},
		TableProjectTemplates: {storeTable[domain.ProjectTemplate]{s.Templates}, effectNone},
	}
}

func isMemberTable(table string) bool {
	return table == TableOrganisationMembers || table == TableProjectMembers
}
