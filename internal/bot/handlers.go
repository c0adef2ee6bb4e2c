package bot

import (
	"context"
	"errors"
	"html"
	"strconv"
	"strings"

	"foodbot/internal/backend"
	"foodbot/internal/bot/helpers"
	"foodbot/internal/logger"
	"foodbot/internal/order"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Handlers binds workflow steps to Telegram endpoints.
type Handlers struct {
	wf  *order.Workflow
	log *slog.Logger
}

// NewHandlers wires the bot handlers around the ordering workflow.
func NewHandlers(wf *order.Workflow) *Handlers {
	return &Handlers{
		wf:  wf,
		log: logger.Component("tg"),
	}
}

// Register binds the /start command, the location endpoint and every inline
// callback to the registry.
func (h *Handlers) Register(reg *Registry) {
	reg.RegisterCommand("/start", Command{
		Handler:     h.onStart,
		Description: "Iniciar sesión y abrir el menú",
	})

	callbacks := map[string]tele.HandlerFunc{
		cbSendLocation: h.onSendLocation,
		cbViewProducts: h.onViewProducts,
		cbViewCart:     h.onViewCart,
		cbAddToCart:    h.onAddToCart,
		cbConfirmOrder: h.onConfirmOrder,
		cbViewOrders:   h.onViewOrders,
		cbClearCart:    h.onClearCart,
		cbBackToMenu:   h.onBackToMenu,
		cbTrackOrder:   h.onTrackOrder,
	}
	for key, handler := range callbacks {
		if err := reg.RegisterCallback(key, handler); err != nil {
			h.log.Warn("callback registration failed",
				slog.String("event", "tg.wire"),
				slog.String("key", key),
				slog.String("err", err.Error()),
			)
		}
	}
}

// OnLocation handles a shared location message.
func (h *Handlers) OnLocation(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	msg := c.Message()
	if msg == nil || msg.Location == nil {
		return nil
	}
	lat := float64(msg.Location.Lat)
	lng := float64(msg.Location.Lng)

	ses, err := h.wf.SaveLocation(ctx, c.Sender().ID, lat, lng)
	if err != nil {
		return h.sendError(c, ctx, err, locationErrText(err))
	}

	text, markup := renderLocationSaved(ses.DeliveryLocation.Lat, ses.DeliveryLocation.Lng)
	return c.Send(text, markup, tele.ModeHTML)
}

func (h *Handlers) onStart(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	sender := c.Sender()
	name := sender.FirstName
	if name == "" {
		name = "Usuario"
	}

	ses, err := h.wf.Start(ctx, sender.ID, name)
	if err != nil {
		return h.sendError(c, ctx, err, "❌ Error de autenticación")
	}

	text, markup := renderMainMenu(ses.DisplayName)
	return c.Send(text, markup, tele.ModeHTML)
}

func (h *Handlers) onSendLocation(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	if _, err := h.wf.RequestLocation(c.Sender().ID); err != nil {
		return h.sendError(c, ctx, err, "❌ Error al procesar ubicación")
	}
	text, markup := renderLocationPrompt()
	return c.Send(text, markup)
}

func (h *Handlers) onViewProducts(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	products, err := h.wf.BrowseProducts(ctx, c.Sender().ID)
	if err != nil {
		if errors.Is(err, order.ErrNoProducts) {
			return c.Send("❌ No hay productos disponibles")
		}
		return h.sendError(c, ctx, err, "❌ Error al obtener productos")
	}
	text, markup := renderCatalog(products)
	return c.Send(text, markup, tele.ModeHTML)
}

func (h *Handlers) onAddToCart(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	_, payload := callbackKey(c)
	productID, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil {
		return c.Send("❌ Producto no encontrado")
	}

	line, err := h.wf.AddToCart(c.Sender().ID, productID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNoCatalog):
			return c.Send("❌ Primero debes ver los productos")
		case errors.Is(err, order.ErrUnknownProduct):
			return c.Send("❌ Producto no encontrado")
		}
		return h.sendError(c, ctx, err, "❌ Error al agregar producto")
	}
	return c.Send("✅ <b>"+html.EscapeString(line.Name)+"</b> agregado al carrito", tele.ModeHTML)
}

func (h *Handlers) onViewCart(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	view, err := h.wf.ViewCart(c.Sender().ID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrEmptyCart):
			return c.Send("🛒 Tu carrito está vacío")
		case errors.Is(err, order.ErrNoLocation):
			return c.Send("❌ Debes compartir tu ubicación primero")
		}
		return h.sendError(c, ctx, err, "❌ Error al mostrar el carrito")
	}
	text, markup := renderCart(view)
	return c.Send(text, markup, tele.ModeHTML)
}

func (h *Handlers) onConfirmOrder(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	receipt, err := h.wf.Confirm(ctx, c.Sender().ID)
	if err != nil {
		if order.IsPrecondition(err) {
			return c.Send("❌ Carrito incompleto o dirección no establecida")
		}
		return h.sendError(c, ctx, err, "❌ Error al crear pedido")
	}
	text, markup := renderReceipt(receipt)
	return c.Send(text, markup, tele.ModeHTML)
}

func (h *Handlers) onViewOrders(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	orders, err := h.wf.ListOrders(ctx, c.Sender().ID)
	if err != nil {
		return h.sendError(c, ctx, err, "❌ Error al obtener pedidos")
	}
	if len(orders) == 0 {
		return c.Send("❌ No hay pedidos")
	}
	text, markup := renderOrders(orders)
	return c.Send(text, markup, tele.ModeHTML)
}

func (h *Handlers) onClearCart(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	ses, err := h.wf.ClearCart(c.Sender().ID)
	if err != nil {
		return h.sendError(c, ctx, err, "❌ Error al vaciar el carrito")
	}
	if err := c.Send("🗑️ Carrito vaciado"); err != nil {
		return err
	}
	text, markup := renderMainMenu(ses.DisplayName)
	return c.Send(text, markup, tele.ModeHTML)
}

func (h *Handlers) onBackToMenu(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	ses, err := h.wf.BackToMenu(c.Sender().ID)
	if err != nil {
		return h.sendError(c, ctx, err, "❌ Error al volver al menú")
	}
	text, markup := renderMainMenu(ses.DisplayName)
	return c.Send(text, markup, tele.ModeHTML)
}

func (h *Handlers) onTrackOrder(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	_, payload := callbackKey(c)
	orderID, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil {
		return c.Send("❌ Pedido no encontrado")
	}

	o, err := h.wf.Track(ctx, c.Sender().ID, orderID)
	if err != nil {
		var se *backend.StatusError
		if errors.As(err, &se) {
			return c.Send("❌ Pedido no encontrado")
		}
		return h.sendError(c, ctx, err, "❌ Error al rastrear pedido")
	}
	text, markup := renderTracking(o)
	return c.Send(text, markup, tele.ModeHTML)
}

// sendError resolves the user-facing message for err, logs the cause, and
// replies. Session expiry always wins over the step-specific fallback.
func (h *Handlers) sendError(c tele.Context, ctx context.Context, err error, fallback string) error {
	text := fallback
	if errors.Is(err, order.ErrSessionExpired) {
		text = "❌ Sesión expirada. Usa /start"
	}
	logger.Warn(ctx, "tg", "handler.error",
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
	return c.Send(text)
}

// locationErrText distinguishes the two backend steps of saving a location so
// the reply names the one that failed.
func locationErrText(err error) string {
	var se *backend.StatusError
	if errors.As(err, &se) {
		if strings.Contains(se.Endpoint, "/customers/") {
			return "❌ Error al asociar dirección"
		}
		return "❌ Error al guardar dirección"
	}
	return "❌ Error al procesar ubicación"
}
