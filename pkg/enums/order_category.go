package enums

import "fmt"

// OrderCategory classifies the kind of work a buyer is requesting.
type OrderCategory string

const (
	OrderCategoryPlugins       OrderCategory = "plugins"
	OrderCategoryBuilds        OrderCategory = "builds"
	OrderCategoryConfiguration OrderCategory = "configuration"
	OrderCategoryMods          OrderCategory = "mods"
	OrderCategoryDesign        OrderCategory = "design"
	OrderCategoryOther         OrderCategory = "other"
)

var validOrderCategories = []OrderCategory{
	OrderCategoryPlugins,
	OrderCategoryBuilds,
	OrderCategoryConfiguration,
	OrderCategoryMods,
	OrderCategoryDesign,
	OrderCategoryOther,
}

func (c OrderCategory) String() string {
	return string(c)
}

func (c OrderCategory) IsValid() bool {
	for _, candidate := range validOrderCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseOrderCategory(value string) (OrderCategory, error) {
	for _, candidate := range validOrderCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order category %q", value)
}
