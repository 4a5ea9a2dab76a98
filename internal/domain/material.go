package domain

import "time"

type Material struct {
	ID                string    `json:"id"`
	TaskID            string    `json:"task_id"`
	Name              string    `json:"name"`
	PlannedQuantity   float64   `json:"planned_quantity"`
	UsedQuantity      float64   `json:"used_quantity"`
	UnitCost          float64   `json:"unit_cost"`
	Unit              string    `json:"unit"`
	Requested         bool      `json:"requested"`
	Approved          bool      `json:"approved"`
	DeliveredQuantity float64   `json:"delivered_quantity"`
	WasteQuantity     float64   `json:"waste_quantity"`
	CreatedAt         time.Time `json:"created_at"`
}

// PlannedCost is the planned quantity priced at the unit cost.
func (m *Material) PlannedCost() float64 {
	return m.PlannedQuantity * m.UnitCost
}

// UsedCost is the used quantity plus waste priced at the unit cost.
func (m *Material) UsedCost() float64 {
	return (m.UsedQuantity + m.WasteQuantity) * m.UnitCost
}

// MaterialPricing is an organisation's reference price for a material.
type MaterialPricing struct {
	ID             string    `json:"id"`
	OrganisationID string    `json:"organisation_id"`
	Name           string    `json:"name"`
	Unit           string    `json:"unit"`
	UnitCost       float64   `json:"unit_cost"`
	CreatedAt      time.Time `json:"created_at"`
}
