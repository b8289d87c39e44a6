package types

import "time"

// Entity names a master-data table, e.g. "departments".
type Entity string

const (
	EntityAccountTypes  Entity = "account-types"
	EntityDesignations  Entity = "designations"
	EntityDepartments   Entity = "departments"
	EntityGeolocations  Entity = "geolocations"
	EntityLoanTypes     Entity = "loan-types"
	EntitySubcategories Entity = "subcategories"
	EntityVoyages       Entity = "voyages"
	EntityWorkLocations Entity = "work-locations"
)

// LockedAttribute marks a record that may be read but not changed or removed.
const LockedAttribute = "locked"

type Record struct {
	ID         string         `json:"id"`
	Entity     Entity         `json:"entity"`
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	CompanyID  string         `json:"companyId"`
	Attributes map[string]any `json:"attributes"`
	IsActive   bool           `json:"isActive"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (r Record) Locked() bool {
	v, _ := r.Attributes[LockedAttribute].(bool)
	return v
}

type ListQuery struct {
	Search   string
	Page     int
	PageSize int
}

// Offset is the number of rows skipped before the requested page.
func (q ListQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}
