package models

import "github.com/shopspring/decimal"

// Geo level labels, deepest last.
const (
	GeoLevelCountry  = "country"
	GeoLevelRegion   = "region"
	GeoLevelCity     = "city"
	GeoLevelDistrict = "district"
)

// Sentinel labels for unresolvable address fields. Empty values are
// replaced rather than omitted so totals always reconcile up to the
// country level.
const (
	UnknownCountry = "Unknown"
	UnknownRegion  = "Unknown Region"
	UnknownCity    = "Unknown City"
)

// GeoNode is one level of the reconstructed geographic sales hierarchy.
// Children are sorted by total sales descending. A parent's counts equal
// the sum of its children's whenever children exist; district children are
// attached only when the source address carried one.
type GeoNode struct {
	Name     string          `json:"name"`
	Level    string          `json:"level"`
	Orders   int             `json:"total_orders"`
	Sales    decimal.Decimal `json:"total_sales"`
	Children []GeoNode       `json:"children,omitempty"`
}
