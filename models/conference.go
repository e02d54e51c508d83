package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrMalformedProducts = errors.New("malformed conference products")

// Conference is an operator-verified order receipt ("conferência").
// Products holds the serialized line items exactly as the checking UI stored them.
type Conference struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Date      time.Time `gorm:"not null;index" json:"date"`
	Products  string    `gorm:"type:longtext;not null" json:"products"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Conference) TableName() string {
	return "verified_receipts"
}

type LineItem struct {
	ProductName      string `json:"product_name"`
	QuantityOrdered  int    `json:"quantity_ordered"`
	QuantityReceived int    `json:"quantity_received"`
}

// FullyReceived reports whether the line needs no further reconciliation.
// Over-receipt counts as fully received.
func (l LineItem) FullyReceived() bool {
	return l.QuantityReceived >= l.QuantityOrdered
}

// UnmarshalJSON accepts both the current keys and the ones the checking UI
// used originally (produto / quantidade_pedida / quantidade_recebida).
// Quantities may be numbers or numeric strings.
func (l *LineItem) UnmarshalJSON(b []byte) error {
	var raw struct {
		ProductName        *string      `json:"product_name"`
		Produto            *string      `json:"produto"`
		QuantityOrdered    *flexibleInt `json:"quantity_ordered"`
		QuantidadePedida   *flexibleInt `json:"quantidade_pedida"`
		QuantityReceived   *flexibleInt `json:"quantity_received"`
		QuantidadeRecebida *flexibleInt `json:"quantidade_recebida"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	item := LineItem{}
	switch {
	case raw.ProductName != nil:
		item.ProductName = *raw.ProductName
	case raw.Produto != nil:
		item.ProductName = *raw.Produto
	}
	switch {
	case raw.QuantityOrdered != nil:
		item.QuantityOrdered = int(*raw.QuantityOrdered)
	case raw.QuantidadePedida != nil:
		item.QuantityOrdered = int(*raw.QuantidadePedida)
	}
	switch {
	case raw.QuantityReceived != nil:
		item.QuantityReceived = int(*raw.QuantityReceived)
	case raw.QuantidadeRecebida != nil:
		item.QuantityReceived = int(*raw.QuantidadeRecebida)
	}
	*l = item
	return nil
}

type flexibleInt int

func (f *flexibleInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	s = strings.TrimSpace(s)
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid quantity %q", s)
	}
	if v != math.Trunc(v) {
		return fmt.Errorf("quantity %q is not a whole number", s)
	}
	*f = flexibleInt(v)
	return nil
}

// LineItems deserializes Products. Any error wraps ErrMalformedProducts.
func (c *Conference) LineItems() ([]LineItem, error) {
	payload := strings.TrimSpace(c.Products)
	if payload == "" {
		return nil, fmt.Errorf("%w: conference %d has empty products", ErrMalformedProducts, c.ID)
	}
	var items []LineItem
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("%w: conference %d: %v", ErrMalformedProducts, c.ID, err)
	}
	for i, item := range items {
		if strings.TrimSpace(item.ProductName) == "" {
			return nil, fmt.Errorf("%w: conference %d line %d has no product name", ErrMalformedProducts, c.ID, i)
		}
		if item.QuantityOrdered < 0 || item.QuantityReceived < 0 {
			return nil, fmt.Errorf("%w: conference %d line %d has negative quantity", ErrMalformedProducts, c.ID, i)
		}
	}
	return items, nil
}

// SetLineItems serializes items into Products.
func (c *Conference) SetLineItems(items []LineItem) error {
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	c.Products = string(b)
	return nil
}
