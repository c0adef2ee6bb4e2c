package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"foodbot/internal/backend"
	"foodbot/internal/order"

	tele "gopkg.in/telebot.v4"
)

// Callback uniques. Inline buttons carry these as the callback key, with the
// entity id in the payload where one is needed.
const (
	cbSendLocation = "send_location"
	cbViewProducts = "view_products"
	cbViewCart     = "view_cart"
	cbAddToCart    = "add_to_cart"
	cbConfirmOrder = "confirm_order"
	cbViewOrders   = "view_orders"
	cbClearCart    = "clear_cart"
	cbBackToMenu   = "back_to_menu"
	cbTrackOrder   = "track_order"
)

// ordersListLimit caps how many history entries a single message shows.
const ordersListLimit = 5

// price renders an amount the way the backend reports it, without trailing
// zeros. Totals that sum several lines use fixed two decimals instead.
func price(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func renderMainMenu(name string) (string, *tele.ReplyMarkup) {
	text := fmt.Sprintf("¡Hola %s! 👋\n\nBienvenido a <b>MyFood</b>. Aquí puedes:\n\n✅ Ver productos\n📦 Hacer pedidos\n🚗 Rastrear tu entrega", html.EscapeString(name))
	markup := InlineColumn(
		InlineBtn{Text: "📍 Enviar ubicación", Unique: cbSendLocation},
		InlineBtn{Text: "🛍️ Ver productos", Unique: cbViewProducts},
		InlineBtn{Text: "🛒 Mi carrito", Unique: cbViewCart},
		InlineBtn{Text: "📦 Mis pedidos", Unique: cbViewOrders},
	)
	return text, markup
}

func renderLocationPrompt() (string, *tele.ReplyMarkup) {
	return "📍 Por favor, comparte tu ubicación (donde deseas recibir el pedido)",
		LocationKeyboard("📍 Compartir ubicación")
}

func renderLocationSaved(lat, lng float64) (string, *tele.ReplyMarkup) {
	text := fmt.Sprintf("✅ Ubicación guardada:\n📍 <code>%.6f, %.6f</code>\n\n¿Qué deseas hacer?", lat, lng)
	markup := InlineColumn(
		InlineBtn{Text: "🛍️ Ver productos", Unique: cbViewProducts},
		InlineBtn{Text: "📍 Cambiar ubicación", Unique: cbSendLocation},
	)
	return text, markup
}

func renderCatalog(products []backend.Product) (string, *tele.ReplyMarkup) {
	var b strings.Builder
	b.WriteString("<b>🛍️ Productos disponibles:</b>\n\n")

	rows := make([][]InlineBtn, 0, len(products)+1)
	for i, p := range products {
		fmt.Fprintf(&b, "%d. %s - $%s %s\n<i>%s</i>\n\n",
			i+1, html.EscapeString(p.Name), price(p.Price), html.EscapeString(p.Currency), html.EscapeString(p.Description))
		rows = append(rows, []InlineBtn{{
			Text:   "➕ " + p.Name,
			Unique: cbAddToCart,
			Data:   strconv.FormatInt(p.ID, 10),
		}})
	}
	rows = append(rows, []InlineBtn{{Text: "🛒 Ver carrito", Unique: cbViewCart}})
	return b.String(), InlineRows(rows...)
}

func renderCart(view *order.CartView) (string, *tele.ReplyMarkup) {
	var b strings.Builder
	b.WriteString("<b>🛒 Tu carrito:</b>\n\n")
	for i, l := range view.Lines {
		lineTotal := l.UnitPrice * float64(l.Quantity)
		fmt.Fprintf(&b, "%d. %s x%d = $%.2f\n", i+1, html.EscapeString(l.Name), l.Quantity, lineTotal)
	}
	fmt.Fprintf(&b, "\n<b>Subtotal:</b> $%.2f", view.Quote.Subtotal)
	fmt.Fprintf(&b, "\n<b>Distancia:</b> %.2f km", view.Quote.DistanceKm)
	fmt.Fprintf(&b, "\n<b>Entrega:</b> $%.2f", view.Quote.DeliveryFee)
	fmt.Fprintf(&b, "\n<b>Total:</b> $%.2f", view.Quote.Total)

	markup := InlineColumn(
		InlineBtn{Text: "✅ Confirmar pedido", Unique: cbConfirmOrder},
		InlineBtn{Text: "➕ Agregar más", Unique: cbViewProducts},
		InlineBtn{Text: "🗑️ Vaciar carrito", Unique: cbClearCart},
	)
	return b.String(), markup
}

func renderReceipt(r *order.Receipt) (string, *tele.ReplyMarkup) {
	text := fmt.Sprintf("✅ <b>¡Pedido confirmado!</b>\n\n📦 ID del pedido: <code>%d</code>\n💰 Total: $%.2f\n\nRastreando tu entrega...", r.OrderID, r.Total)
	markup := InlineColumn(
		InlineBtn{Text: "🚗 Rastrear entrega", Unique: cbTrackOrder, Data: strconv.FormatInt(r.OrderID, 10)},
	)
	return text, markup
}

func renderOrders(orders []backend.Order) (string, *tele.ReplyMarkup) {
	var b strings.Builder
	b.WriteString("<b>📦 Tus pedidos:</b>\n\n")

	shown := orders
	if len(shown) > ordersListLimit {
		shown = shown[:ordersListLimit]
	}
	rows := make([][]InlineBtn, 0, len(shown)+1)
	for _, o := range shown {
		status := o.OrderStatus.Name
		if status == "" {
			status = "Desconocido"
		}
		fmt.Fprintf(&b, "ID: <code>%d</code>\n", o.ID)
		fmt.Fprintf(&b, "Estado: %s\n", html.EscapeString(status))
		fmt.Fprintf(&b, "Total: $%s\n", price(o.Total))
		fmt.Fprintf(&b, "Fecha: %s\n\n", orderDate(o.Date))
		rows = append(rows, []InlineBtn{{
			Text:   fmt.Sprintf("📦 Pedido #%d", o.ID),
			Unique: cbTrackOrder,
			Data:   strconv.FormatInt(o.ID, 10),
		}})
	}
	rows = append(rows, []InlineBtn{{Text: "🏠 Ir al inicio", Unique: cbBackToMenu}})
	return b.String(), InlineRows(rows...)
}

func renderTracking(o *backend.Order) (string, *tele.ReplyMarkup) {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>📦 Pedido #%d</b>\n\n", o.ID)
	status := o.OrderStatus.Name
	if status == "" {
		status = "Procesando"
	}
	fmt.Fprintf(&b, "Estado: <b>%s</b>\n", html.EscapeString(status))
	fmt.Fprintf(&b, "Total: $%s\n", price(o.Total))

	if len(o.Deliveries) > 0 && o.Deliveries[0].Driver != nil {
		d := o.Deliveries[0].Driver
		b.WriteString("\n<b>🚗 Conductor:</b>\n")
		fmt.Fprintf(&b, "Nombre: %s %s\n", html.EscapeString(d.Name), html.EscapeString(d.LastName))
		if d.IsAvailable {
			b.WriteString("Estado: ✅ Disponible\n")
		} else {
			b.WriteString("Estado: ❌ No disponible\n")
		}
	}
	if o.Address != nil {
		fmt.Fprintf(&b, "\n📍 <b>Tu ubicación:</b> %.6f, %.6f", o.Address.CoordinateX, o.Address.CoordinateY)
	}

	markup := InlineColumn(
		InlineBtn{Text: "🔄 Actualizar", Unique: cbTrackOrder, Data: strconv.FormatInt(o.ID, 10)},
		InlineBtn{Text: "📦 Ver pedidos", Unique: cbViewOrders},
	)
	return b.String(), markup
}

// orderDate formats the backend timestamp as day/month/year; on parse failure
// the raw value is shown rather than nothing.
func orderDate(raw string) string {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2/1/2006")
		}
	}
	return raw
}
