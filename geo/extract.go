// Package geo reconstructs a country → region → city (→ district) sales
// hierarchy from the inconsistently-shaped address payloads carried on raw
// orders.
package geo

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"shoppulse/logger"
	"shoppulse/models"
)

// address is the normalized location extracted from one order.
type address struct {
	country  string
	region   string
	city     string
	district string
}

// addressExtractor probes one known payload shape and returns the address
// object it holds, or nil. Extractors are tried strictly in order of
// preference; the first hit wins.
type addressExtractor func(map[string]interface{}) map[string]interface{}

var addressExtractors = []addressExtractor{
	func(raw map[string]interface{}) map[string]interface{} {
		return getMap(raw, "shipping_address")
	},
	func(raw map[string]interface{}) map[string]interface{} {
		if shipping := getMap(raw, "shipping"); shipping != nil {
			return getMap(shipping, "address")
		}
		return nil
	},
	func(raw map[string]interface{}) map[string]interface{} {
		if customer := getMap(raw, "customer"); customer != nil {
			return getMap(customer, "default_address")
		}
		return nil
	},
	func(raw map[string]interface{}) map[string]interface{} {
		customer := getMap(raw, "customer")
		if customer == nil {
			return nil
		}
		addrs, ok := customer["addresses"].([]interface{})
		if !ok || len(addrs) == 0 {
			return nil
		}
		first, _ := addrs[0].(map[string]interface{})
		return first
	},
	func(raw map[string]interface{}) map[string]interface{} {
		return getMap(raw, "billing_address")
	},
}

type cityAccum struct {
	orders    int
	sales     decimal.Decimal
	districts map[string]*leafAccum
}

type leafAccum struct {
	orders int
	sales  decimal.Decimal
}

type regionAccum struct {
	orders int
	sales  decimal.Decimal
	cities map[string]*cityAccum
}

type countryAccum struct {
	orders  int
	sales   decimal.Decimal
	regions map[string]*regionAccum
}

// Extract folds orders into the geographic hierarchy and returns countries
// sorted by total sales descending, children sorted the same way at every
// level. Orders contributing no resolvable address are skipped silently.
func Extract(orders []models.Order) []models.GeoNode {
	log := logger.GetLogger().WithComponent("geo")

	countries := make(map[string]*countryAccum)
	resolved := 0

	for _, o := range orders {
		addr, ok := resolveAddress(o.Raw)
		if !ok {
			continue
		}
		resolved++
		fold(countries, addr, o.TotalPrice)
	}

	log.WithFields(logger.Fields{
		"orders":    len(orders),
		"resolved":  resolved,
		"countries": len(countries),
	}).Debug("extracted geographic hierarchy")

	return build(countries)
}

// resolveAddress runs the extractor chain and normalizes the winning
// address. Blank fields become sentinel labels so totals reconcile to the
// country level even on sparse data.
func resolveAddress(raw map[string]interface{}) (address, bool) {
	if raw == nil {
		return address{}, false
	}

	var src map[string]interface{}
	for _, extract := range addressExtractors {
		if m := extract(raw); m != nil {
			src = m
			break
		}
	}
	if src == nil {
		return address{}, false
	}

	addr := address{
		country:  strings.TrimSpace(getString(src, "country")),
		region:   strings.TrimSpace(getString(src, "province")),
		city:     strings.TrimSpace(getString(src, "city")),
		district: strings.TrimSpace(getString(src, "district")),
	}
	if addr.district == "" {
		addr.district = strings.TrimSpace(getString(src, "suburb"))
	}

	if addr.country == "" {
		addr.country = models.UnknownCountry
	}
	if addr.region == "" {
		addr.region = models.UnknownRegion
	}
	if addr.city == "" {
		addr.city = models.UnknownCity
	}
	// A city repeating its region is a raw-data duplication artifact, not
	// a real 1:1 region→city mapping.
	if strings.EqualFold(addr.city, addr.region) {
		addr.city = models.UnknownCity
	}

	return addr, true
}

func fold(countries map[string]*countryAccum, addr address, total decimal.Decimal) {
	country, ok := countries[addr.country]
	if !ok {
		country = &countryAccum{sales: decimal.Zero, regions: make(map[string]*regionAccum)}
		countries[addr.country] = country
	}
	country.orders++
	country.sales = country.sales.Add(total)

	region, ok := country.regions[addr.region]
	if !ok {
		region = &regionAccum{sales: decimal.Zero, cities: make(map[string]*cityAccum)}
		country.regions[addr.region] = region
	}
	region.orders++
	region.sales = region.sales.Add(total)

	city, ok := region.cities[addr.city]
	if !ok {
		city = &cityAccum{sales: decimal.Zero}
		region.cities[addr.city] = city
	}
	city.orders++
	city.sales = city.sales.Add(total)

	// District nodes exist only when the source address carried one.
	if addr.district != "" {
		if city.districts == nil {
			city.districts = make(map[string]*leafAccum)
		}
		district, ok := city.districts[addr.district]
		if !ok {
			district = &leafAccum{sales: decimal.Zero}
			city.districts[addr.district] = district
		}
		district.orders++
		district.sales = district.sales.Add(total)
	}
}

// build converts accumulation maps into sorted node lists, deepest level
// first.
func build(countries map[string]*countryAccum) []models.GeoNode {
	out := make([]models.GeoNode, 0, len(countries))
	for name, country := range countries {
		regions := make([]models.GeoNode, 0, len(country.regions))
		for regionName, region := range country.regions {
			cities := make([]models.GeoNode, 0, len(region.cities))
			for cityName, city := range region.cities {
				var districts []models.GeoNode
				for districtName, district := range city.districts {
					districts = append(districts, models.GeoNode{
						Name:   districtName,
						Level:  models.GeoLevelDistrict,
						Orders: district.orders,
						Sales:  district.sales,
					})
				}
				sortNodes(districts)
				cities = append(cities, models.GeoNode{
					Name:     cityName,
					Level:    models.GeoLevelCity,
					Orders:   city.orders,
					Sales:    city.sales,
					Children: districts,
				})
			}
			sortNodes(cities)
			regions = append(regions, models.GeoNode{
				Name:     regionName,
				Level:    models.GeoLevelRegion,
				Orders:   region.orders,
				Sales:    region.sales,
				Children: cities,
			})
		}
		sortNodes(regions)
		out = append(out, models.GeoNode{
			Name:     name,
			Level:    models.GeoLevelCountry,
			Orders:   country.orders,
			Sales:    country.sales,
			Children: regions,
		})
	}
	sortNodes(out)
	return out
}

// sortNodes orders by total sales descending, name ascending on ties so
// output is deterministic.
func sortNodes(nodes []models.GeoNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if !nodes[i].Sales.Equal(nodes[j].Sales) {
			return nodes[i].Sales.GreaterThan(nodes[j].Sales)
		}
		return nodes[i].Name < nodes[j].Name
	})
}

func getMap(m map[string]interface{}, key string) map[string]interface{} {
	v, _ := m[key].(map[string]interface{})
	return v
}

func getString(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}
