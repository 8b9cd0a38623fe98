package handler

import (
	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/model"
	"github.com/hupe1980/tunedesk/store"
	"github.com/hupe1980/tunedesk/tool"
)

const orderInstruction = `You are the checkout assistant of a digital music store.

Customers ask you to buy tracks. Collect the customer ID and the cart (track ID, unit price and quantity per line) and call create_order exactly once per confirmed purchase. The tool writes the invoice atomically and returns its ID and total.

Confirm the invoice ID and total back to the customer. If the tool reports a validation problem, ask for the corrected detail instead of retrying blindly, and never call create_order again for a purchase that already succeeded.`

// NewOrderHandler returns the checkout specialist. It matches purchase
// intents and is the only handler bound to a mutating tool.
func NewOrderHandler(mdl model.Model, musicStore store.MusicStore, optFns ...func(o *Options)) *ModelHandler {
	capability := core.Capability{
		Description: "Creates orders and invoices for track purchases",
		Keywords: []string{
			"order", "orders", "buy", "purchase", "purchasing",
			"checkout", "cart", "pay", "payment",
		},
	}

	defaults := []func(o *Options){func(o *Options) {
		o.Instruction = NewInstructionFromText(orderInstruction)
		o.Tools = []tool.Tool{tool.NewCreateOrderTool(musicStore)}
	}}

	return New("order", capability, mdl, append(defaults, optFns...)...)
}
