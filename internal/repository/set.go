package repository

import "github.com/alexanderramin/sitesync/internal/db"

// Set bundles one repository per table over a single connection or
// transaction.
type Set struct {
	Profiles            ProfileRepo
	Organisations       OrganisationRepo
	OrganisationMembers OrganisationMemberRepo
	Projects            ProjectRepo
	ProjectMembers      ProjectMemberRepo
	Phases              PhaseRepo
	Tasks               TaskRepo
	Materials           MaterialRepo
	Requests            RequestRepo
	MaterialPricing     MaterialPricingRepo
	Templates           ProjectTemplateRepo
}

// NewSet builds every repository over conn. Pass a transaction to get a
// tx-scoped set inside UnitOfWork.WithinTx.
func NewSet(conn db.DBTX, d db.Dialect) *Set {
	return &Set{
		Profiles:            NewProfileRepo(conn, d),
		Organisations:       NewOrganisationRepo(conn, d),
		OrganisationMembers: NewOrganisationMemberRepo(conn, d),
		Projects:            NewProjectRepo(conn, d),
		ProjectMembers:      NewProjectMemberRepo(conn, d),
		Phases:              NewPhaseRepo(conn, d),
		Tasks:               NewTaskRepo(conn, d),
		Materials:           NewMaterialRepo(conn, d),
		Requests:            NewRequestRepo(conn, d),
		MaterialPricing:     NewMaterialPricingRepo(conn, d),
		Templates:           NewProjectTemplateRepo(conn, d),
	}
}
