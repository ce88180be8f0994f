package shipments

import (
	"strings"
)

// Canonical field names of a shipment record
const (
	FieldShipmentID     = "shipment_id"
	FieldOriginZIP      = "origin_zip"
	FieldDestinationZIP = "destination_zip"
	FieldWeight         = "weight"
	FieldBillableWeight = "billable_weight"
	FieldLength         = "length"
	FieldWidth          = "width"
	FieldHeight         = "height"
	FieldPackageType    = "package_type"
	FieldServiceLevel   = "service_level"
	FieldCarrierRate    = "carrier_rate"
)

// aliases maps normalized header spellings to canonical fields
var aliases = map[string][]string{
	FieldShipmentID:     {"id", "order_id", "order", "order_number", "tracking", "tracking_number", "reference"},
	FieldOriginZIP:      {"origin", "origin_zip_code", "origin_postal_code", "from_zip", "ship_from_zip", "shipper_zip"},
	FieldDestinationZIP: {"destination", "dest_zip", "destination_zip_code", "destination_postal_code", "to_zip", "ship_to_zip", "recipient_zip", "zip", "zipcode", "zip_code", "postal_code"},
	FieldWeight:         {"actual_weight", "weight_lbs", "weight_lb", "lbs", "pounds"},
	FieldBillableWeight: {"billed_weight", "rated_weight", "chargeable_weight"},
	FieldLength:         {"length_in", "len", "l"},
	FieldWidth:          {"width_in", "w"},
	FieldHeight:         {"height_in", "h"},
	FieldPackageType:    {"package", "packaging", "package_kind", "container"},
	FieldServiceLevel:   {"service", "service_type", "shipping_method", "method", "ship_method"},
	FieldCarrierRate:    {"carrier_cost", "carrier_charge", "actual_cost", "billed_amount", "amount_paid", "paid", "cost", "charge", "total_charge"},
}

var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string]string {
	idx := make(map[string]string)
	for field, names := range aliases {
		idx[field] = field
		for _, n := range names {
			idx[n] = field
		}
	}
	return idx
}

// normalizeHeader lowercases a header and folds separators to underscores
// ("Origin Zip" -> "origin_zip", "Ship-To ZIP" -> "ship_to_zip")
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.NewReplacer(" ", "_", "-", "_", ".", "_", "/", "_").Replace(h)
	for strings.Contains(h, "__") {
		h = strings.ReplaceAll(h, "__", "_")
	}
	h = strings.TrimSuffix(h, "_($)")
	h = strings.TrimSuffix(h, "_(lbs)")
	return strings.Trim(h, "_()")
}

// canonicalField resolves a header to a canonical field. Explicit mappings
// (canonical field -> source header) take precedence over aliases.
func canonicalField(header string, mapping map[string]string) (string, bool) {
	for field, src := range mapping {
		if strings.EqualFold(strings.TrimSpace(src), strings.TrimSpace(header)) {
			return field, true
		}
	}
	field, ok := aliasIndex[normalizeHeader(header)]
	if !ok {
		return "", false
	}
	if _, overridden := mapping[field]; overridden {
		return "", false
	}
	return field, true
}

// serviceLevel maps carrier wording onto a service level name. Unknown
// wording is returned unchanged for ParseServiceLevel to default.
func serviceLevel(s string) string {
	l := strings.ToLower(s)
	switch {
	case strings.Contains(l, "next day"), strings.Contains(l, "next-day"), strings.Contains(l, "next_day"), strings.Contains(l, "overnight"):
		return "next_day"
	case strings.Contains(l, "priority"):
		return "priority"
	case strings.Contains(l, "express"), strings.Contains(l, "expedited"):
		return "expedited"
	case strings.Contains(l, "ground"), strings.Contains(l, "standard"):
		return "standard"
	}
	return s
}
