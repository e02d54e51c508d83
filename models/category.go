package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Category is one of the nine fixed product groupings. Each category is backed
// by its own catalog table whose name equals the category value.
type Category string

const (
	CategoryIceCream       Category = "ice_cream"
	CategoryAcai           Category = "acai"
	CategoryAccompaniments Category = "accompaniments"
	CategoryFrozen         Category = "frozen"
	CategoryUtensils       Category = "utensils"
	CategoryCollectibles   Category = "collectibles"
	CategoryContainers     Category = "containers"
	CategorySeasonal       Category = "seasonal"
	CategoryCampaigns      Category = "campaigns"
)

var ErrUnknownCategory = errors.New("unknown category")

// Categories returns the fixed category set in resolution order.
func Categories() []Category {
	return []Category{
		CategoryIceCream,
		CategoryAcai,
		CategoryAccompaniments,
		CategoryFrozen,
		CategoryUtensils,
		CategoryCollectibles,
		CategoryContainers,
		CategorySeasonal,
		CategoryCampaigns,
	}
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryIceCream, CategoryAcai, CategoryAccompaniments, CategoryFrozen, CategoryUtensils,
		CategoryCollectibles, CategoryContainers, CategorySeasonal, CategoryCampaigns:
		return true
	}
	return false
}

// TableName is the catalog table backing the category.
func (c Category) TableName() string {
	return string(c)
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory accepts the table name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("category must be string")
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
