package integration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/ordersync/internal/domain/reconciliation"
)

// ---------------------------------------------------------------------------
// RawOrder
// ---------------------------------------------------------------------------

// RawOrder holds the fields the sync engine extracts from a marketplace order
// payload. Every field defaults to its zero value when the payload lacks it.
type RawOrder struct {
	ID          string
	PackID      string
	Status      string
	DateCreated time.Time
	LastUpdated time.Time
	Currency    string

	TotalAmount reconciliation.Amount
	PaidAmount  reconciliation.Amount
	Items       []RawOrderItem

	ShippingID string
	// LogisticsType is the order level logistics type, used when the shipment lacks one
	LogisticsType string
	// ShippingCost is the order level freight figure, the last fallback candidate
	ShippingCost reconciliation.Amount

	BuyerID       string
	BuyerNickname string
	Tags          []string

	// Raw is the payload the fields were decoded from
	Raw json.RawMessage
}

// RawOrderItem is one line item of a marketplace order
type RawOrderItem struct {
	ItemID         string
	Title          string
	SKU            string
	VariationID    string
	Quantity       int
	UnitPrice      reconciliation.Amount
	FullUnitPrice  reconciliation.Amount
	SaleFee        reconciliation.Amount
	ListingTypeID  string
	CatalogListing bool
}

type orderWire struct {
	ID          flexString            `json:"id"`
	PackID      flexString            `json:"pack_id"`
	Status      string                `json:"status"`
	DateCreated flexTime              `json:"date_created"`
	LastUpdated flexTime              `json:"last_updated"`
	Currency    string                `json:"currency_id"`
	TotalAmount reconciliation.Amount `json:"total_amount"`
	PaidAmount  reconciliation.Amount `json:"paid_amount"`
	Items       []orderItemWire       `json:"order_items"`
	Shipping    *orderShippingWire    `json:"shipping"`
	ShipCost    reconciliation.Amount `json:"shipping_cost"`
	Buyer       *struct {
		ID       flexString `json:"id"`
		Nickname string     `json:"nickname"`
	} `json:"buyer"`
	Tags []string `json:"tags"`
}

type orderShippingWire struct {
	ID           flexString            `json:"id"`
	LogisticType string                `json:"logistic_type"`
	Cost         reconciliation.Amount `json:"cost"`
}

type orderItemWire struct {
	Item *struct {
		ID                flexString `json:"id"`
		Title             string     `json:"title"`
		SellerSKU         string     `json:"seller_sku"`
		SellerCustomField string     `json:"seller_custom_field"`
		VariationID       flexString `json:"variation_id"`
		CatalogListing    bool       `json:"catalog_listing"`
	} `json:"item"`
	Quantity      reconciliation.Amount `json:"quantity"`
	UnitPrice     reconciliation.Amount `json:"unit_price"`
	FullUnitPrice reconciliation.Amount `json:"full_unit_price"`
	SaleFee       reconciliation.Amount `json:"sale_fee"`
	ListingTypeID string                `json:"listing_type_id"`
}

// DecodeRawOrder extracts the known order fields from a payload.
// Only a payload that is not a JSON object is an error; missing or mistyped
// fields default.
func DecodeRawOrder(data []byte) (*RawOrder, error) {
	var w orderWire
	if err := decodeObject(data, &w); err != nil {
		return nil, fmt.Errorf("%w: order payload: %v", ErrPlatformInvalidResponse, err)
	}
	o := w.toRawOrder()
	o.Raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return &o, nil
}

// UnmarshalJSON decodes an order summary as it appears inside search results
func (o *RawOrder) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	decoded, err := DecodeRawOrder(data)
	if err != nil {
		return err
	}
	*o = *decoded
	return nil
}

func (w orderWire) toRawOrder() RawOrder {
	o := RawOrder{
		ID:           string(w.ID),
		PackID:       string(w.PackID),
		Status:       w.Status,
		DateCreated:  time.Time(w.DateCreated),
		LastUpdated:  time.Time(w.LastUpdated),
		Currency:     w.Currency,
		TotalAmount:  w.TotalAmount,
		PaidAmount:   w.PaidAmount,
		ShippingCost: w.ShipCost,
		Tags:         w.Tags,
	}
	if w.Shipping != nil {
		o.ShippingID = string(w.Shipping.ID)
		o.LogisticsType = w.Shipping.LogisticType
		if !o.ShippingCost.Valid {
			o.ShippingCost = w.Shipping.Cost
		}
	}
	if w.Buyer != nil {
		o.BuyerID = string(w.Buyer.ID)
		o.BuyerNickname = w.Buyer.Nickname
	}
	for _, it := range w.Items {
		item := RawOrderItem{
			Quantity:      int(it.Quantity.OrZero().IntPart()),
			UnitPrice:     it.UnitPrice,
			FullUnitPrice: it.FullUnitPrice,
			SaleFee:       it.SaleFee,
			ListingTypeID: it.ListingTypeID,
		}
		if it.Item != nil {
			item.ItemID = string(it.Item.ID)
			item.Title = it.Item.Title
			item.SKU = it.Item.SellerSKU
			if item.SKU == "" {
				item.SKU = it.Item.SellerCustomField
			}
			item.VariationID = string(it.Item.VariationID)
			item.CatalogListing = it.Item.CatalogListing
		}
		o.Items = append(o.Items, item)
	}
	return o
}

// MergeOver overlays the detail fields present in o over a search summary.
// Fields the detail lacks keep the summary value.
func (o RawOrder) MergeOver(summary RawOrder) RawOrder {
	merged := summary
	mergeString(&merged.ID, o.ID)
	mergeString(&merged.PackID, o.PackID)
	mergeString(&merged.Status, o.Status)
	mergeTime(&merged.DateCreated, o.DateCreated)
	mergeTime(&merged.LastUpdated, o.LastUpdated)
	mergeString(&merged.Currency, o.Currency)
	mergeAmount(&merged.TotalAmount, o.TotalAmount)
	mergeAmount(&merged.PaidAmount, o.PaidAmount)
	if len(o.Items) > 0 {
		merged.Items = o.Items
	}
	mergeString(&merged.ShippingID, o.ShippingID)
	mergeString(&merged.LogisticsType, o.LogisticsType)
	mergeAmount(&merged.ShippingCost, o.ShippingCost)
	mergeString(&merged.BuyerID, o.BuyerID)
	mergeString(&merged.BuyerNickname, o.BuyerNickname)
	if len(o.Tags) > 0 {
		merged.Tags = o.Tags
	}
	if len(o.Raw) > 0 {
		merged.Raw = o.Raw
	}
	return merged
}

// Quantity returns the total quantity over all items
func (o RawOrder) Quantity() int {
	total := 0
	for _, it := range o.Items {
		total += it.Quantity
	}
	return total
}

// FirstItem returns the first line item, or a zero item when there is none
func (o RawOrder) FirstItem() RawOrderItem {
	if len(o.Items) == 0 {
		return RawOrderItem{}
	}
	return o.Items[0]
}

// HasShipment reports whether the order references a shipment
func (o RawOrder) HasShipment() bool {
	return o.ShippingID != ""
}

// ---------------------------------------------------------------------------
// RawShipment
// ---------------------------------------------------------------------------

// RawShipment holds the fields extracted from a marketplace shipment payload
type RawShipment struct {
	ID           string
	Status       string
	Substatus    string
	LogisticType string
	Mode         string

	// BaseCost is the undiscounted freight of the shipment
	BaseCost reconciliation.Amount
	// ListCost is the list freight of the chosen shipping option
	ListCost reconciliation.Amount
	// ShippingOptionCost is what the buyer paid for the chosen option
	ShippingOptionCost reconciliation.Amount
	// ShipmentCost is what the seller is charged for the shipment
	ShipmentCost reconciliation.Amount
	// OrderCost is the order value the marketplace associates with the shipment
	OrderCost reconciliation.Amount

	Tags []string
	Raw  json.RawMessage
}

type shipmentWire struct {
	ID             flexString            `json:"id"`
	Status         string                `json:"status"`
	Substatus      string                `json:"substatus"`
	LogisticType   string                `json:"logistic_type"`
	Mode           string                `json:"mode"`
	BaseCost       reconciliation.Amount `json:"base_cost"`
	OrderCost      reconciliation.Amount `json:"order_cost"`
	Cost           reconciliation.Amount `json:"cost"`
	ShippingOption *struct {
		Cost     reconciliation.Amount `json:"cost"`
		ListCost reconciliation.Amount `json:"list_cost"`
	} `json:"shipping_option"`
	Logistic *struct {
		Type string `json:"type"`
		Mode string `json:"mode"`
	} `json:"logistic"`
	Tags []string `json:"tags"`
}

// DecodeRawShipment extracts the known shipment fields from a payload
func DecodeRawShipment(data []byte) (*RawShipment, error) {
	var w shipmentWire
	if err := decodeObject(data, &w); err != nil {
		return nil, fmt.Errorf("%w: shipment payload: %v", ErrPlatformInvalidResponse, err)
	}
	s := RawShipment{
		ID:           string(w.ID),
		Status:       w.Status,
		Substatus:    w.Substatus,
		LogisticType: w.LogisticType,
		Mode:         w.Mode,
		BaseCost:     w.BaseCost,
		ShipmentCost: w.Cost,
		OrderCost:    w.OrderCost,
		Tags:         w.Tags,
		Raw:          append(json.RawMessage(nil), bytes.TrimSpace(data)...),
	}
	if w.ShippingOption != nil {
		s.ShippingOptionCost = w.ShippingOption.Cost
		s.ListCost = w.ShippingOption.ListCost
	}
	// Newer payloads nest the logistic fields
	if w.Logistic != nil {
		if s.LogisticType == "" {
			s.LogisticType = w.Logistic.Type
		}
		if s.Mode == "" {
			s.Mode = w.Logistic.Mode
		}
	}
	return &s, nil
}

// ---------------------------------------------------------------------------
// Lenient decoding
// ---------------------------------------------------------------------------

var errNotObject = errors.New("payload is not a JSON object")

// decodeObject unmarshals a JSON object into v. Fields whose JSON type does not
// match are skipped instead of failing the whole payload.
func decodeObject(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errNotObject
	}
	err := json.Unmarshal(trimmed, v)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return nil
	}
	return err
}

// flexString accepts a JSON string or number and keeps its text
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = ""
			return nil
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		*f = ""
		return nil
	}
	*f = flexString(n.String())
	return nil
}

// flexTime accepts RFC 3339 timestamps with or without fractional seconds.
// Anything else decodes to the zero time.
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		*f = flexTime{}
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		*f = flexTime{}
		return nil
	}
	*f = flexTime(t)
	return nil
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeTime(dst *time.Time, v time.Time) {
	if !v.IsZero() {
		*dst = v
	}
}

func mergeAmount(dst *reconciliation.Amount, v reconciliation.Amount) {
	if v.Valid {
		*dst = v
	}
}
