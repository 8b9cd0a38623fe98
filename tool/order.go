package tool

import (
	"fmt"
	"math"

	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/store"
)

// CreateOrderName is the wire name of the order creation tool.
const CreateOrderName = "create_order"

// NewCreateOrderTool returns the order creation tool. This is the engine's
// only mutating tool: every successful call persists a new invoice, so
// handlers must not retry it blindly after a success.
func NewCreateOrderTool(musicStore store.MusicStore) *FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"customer_id": map[string]any{
				"type":        "integer",
				"description": "ID of the purchasing customer",
			},
			"cart": map[string]any{
				"type":        "array",
				"description": "Line items to purchase; each needs track_id, unit_price and quantity",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"track_id":   map[string]any{"type": "integer"},
						"unit_price": map[string]any{"type": "number"},
						"quantity":   map[string]any{"type": "integer"},
					},
					"required": []string{"track_id", "unit_price", "quantity"},
				},
			},
		},
		"required": []string{"customer_id", "cart"},
	}

	fn := func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		customerID, err := intArg(args, "customer_id")
		if err != nil {
			return nil, NewToolError(CreateOrderName, err.Error(), CodeValidationError)
		}

		rawCart, _ := args["cart"].([]any)
		cart, err := parseCart(rawCart)
		if err != nil {
			return nil, NewToolError(CreateOrderName, err.Error(), CodeValidationError)
		}

		order, err := musicStore.CreateOrder(toolCtx.Context(), customerID, cart)
		if err != nil {
			return nil, mapStoreError(CreateOrderName, err)
		}

		toolCtx.LogInfo("order.created", "invoice_id", order.InvoiceID, "customer_id", order.CustomerID, "total", order.Total)

		return order, nil
	}

	return NewFunctionTool(
		CreateOrderName,
		"Create an order for a customer: writes one invoice plus a line item per cart entry and returns the invoice ID and total. Not idempotent; call exactly once per confirmed purchase.",
		parameters,
		fn,
	)
}

// parseCart converts the JSON-decoded cart array into line items, rejecting
// malformed entries before any database work happens.
func parseCart(raw []any) ([]store.LineItem, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("cart must contain at least one line item")
	}

	cart := make([]store.LineItem, 0, len(raw))
	for i, entry := range raw {
		item, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cart entry %d must be an object", i)
		}

		trackID, err := intField(item, "track_id", i)
		if err != nil {
			return nil, err
		}

		quantity, err := intField(item, "quantity", i)
		if err != nil {
			return nil, err
		}

		price, ok := numberValue(item["unit_price"])
		if !ok {
			return nil, fmt.Errorf("cart entry %d: unit_price must be a number", i)
		}

		cart = append(cart, store.LineItem{TrackID: trackID, UnitPrice: price, Quantity: quantity})
	}

	return cart, nil
}

func intArg(args map[string]any, key string) (int, error) {
	v, exists := args[key]
	if !exists {
		return 0, fmt.Errorf("%s is required", key)
	}

	n, ok := intValue(v)
	if !ok {
		return 0, fmt.Errorf("%s must be an integer", key)
	}

	return n, nil
}

func intField(item map[string]any, key string, index int) (int, error) {
	n, ok := intValue(item[key])
	if !ok {
		return 0, fmt.Errorf("cart entry %d: %s must be an integer", index, key)
	}
	return n, nil
}

// intValue accepts the numeric shapes JSON decoding and Go callers produce.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
