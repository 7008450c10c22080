// Package catalog holds the closed, system-defined list of notification events.
package catalog

import "github.com/unclebandit/notification-engine/internal/model"

const (
	CategoryOrder    = "order"
	CategoryInvoice  = "invoice"
	CategoryGRN      = "grn"
	CategoryShipment = "shipment"
	CategoryReturn   = "return"
)

var defaultEvents = []model.EventDefinition{
	{EventCode: "ORDER_CREATED", Description: "A purchase order was placed", DefaultEnabled: true, Category: CategoryOrder},
	{EventCode: "ORDER_APPROVED", Description: "A purchase order was approved", DefaultEnabled: true, Category: CategoryOrder},
	{EventCode: "ORDER_REJECTED", Description: "A purchase order was rejected", DefaultEnabled: true, Category: CategoryOrder},
	{EventCode: "ORDER_CANCELLED", Description: "A purchase order was cancelled", DefaultEnabled: true, Category: CategoryOrder},
	{EventCode: "INVOICE_CREATED", Description: "An invoice was raised against an order", DefaultEnabled: true, Category: CategoryInvoice},
	{EventCode: "INVOICE_APPROVED", Description: "An invoice was approved for payment", DefaultEnabled: true, Category: CategoryInvoice},
	{EventCode: "INVOICE_REJECTED", Description: "An invoice was rejected", DefaultEnabled: true, Category: CategoryInvoice},
	{EventCode: "GRN_CREATED", Description: "A goods received note was created", DefaultEnabled: true, Category: CategoryGRN},
	{EventCode: "GRN_ACKNOWLEDGED", Description: "A goods received note was acknowledged", DefaultEnabled: false, Category: CategoryGRN},
	{EventCode: "SHIPMENT_DISPATCHED", Description: "A shipment left the warehouse", DefaultEnabled: true, Category: CategoryShipment},
	{EventCode: "SHIPMENT_STATUS_CHANGED", Description: "A shipment changed status", DefaultEnabled: false, Category: CategoryShipment},
	{EventCode: "SHIPMENT_DELIVERED", Description: "A shipment was delivered", DefaultEnabled: true, Category: CategoryShipment},
	{EventCode: "RETURN_REQUESTED", Description: "A return was requested", DefaultEnabled: true, Category: CategoryReturn},
	{EventCode: "RETURN_APPROVED", Description: "A return was approved", DefaultEnabled: true, Category: CategoryReturn},
}

// Catalog is a read-only registry of event definitions. Order is stable.
type Catalog struct {
	events []model.EventDefinition
	index  map[string]int
}

// New builds a catalog from defs. Duplicate codes keep the first definition.
func New(defs []model.EventDefinition) *Catalog {
	c := &Catalog{index: make(map[string]int, len(defs))}
	for _, d := range defs {
		if _, dup := c.index[d.EventCode]; dup {
			continue
		}
		c.index[d.EventCode] = len(c.events)
		c.events = append(c.events, d)
	}
	return c
}

// Default returns the platform catalog.
func Default() *Catalog {
	return New(defaultEvents)
}

// All returns a copy of every definition in catalog order.
func (c *Catalog) All() []model.EventDefinition {
	out := make([]model.EventDefinition, len(c.events))
	copy(out, c.events)
	return out
}

func (c *Catalog) Lookup(code string) (model.EventDefinition, bool) {
	i, ok := c.index[code]
	if !ok {
		return model.EventDefinition{}, false
	}
	return c.events[i], true
}

func (c *Catalog) Has(code string) bool {
	_, ok := c.index[code]
	return ok
}

func (c *Catalog) Len() int { return len(c.events) }
