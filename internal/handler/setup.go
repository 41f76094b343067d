package handler

import (
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
)

// SetupMessageHandlers sends every update through r. Handlers always return nil
// so the webhook is acknowledged whatever happened.
func SetupMessageHandlers(bh *th.BotHandler, r *Router) {
	bh.Handle(func(ctx *th.Context, update telego.Update) error {
		r.HandleUpdate(ctx.Context(), update)
		return nil
	})
}
