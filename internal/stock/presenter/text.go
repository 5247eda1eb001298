package presenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/stock-monitor/server/internal/stock/model"
)

const (
	RestockMarker = "🚀 RESTOCK!"
	NoDataMessage = "📊 No data for the selected period"
)

// TextRenderer produces the operator texts. Timestamps are shown in loc.
type TextRenderer struct {
	loc *time.Location
}

func NewTextRenderer(loc *time.Location) *TextRenderer {
	if loc == nil {
		loc = time.UTC
	}
	return &TextRenderer{loc: loc}
}

func (r *TextRenderer) RenderMenu(products []model.TrackedProduct) string {
	var b strings.Builder
	b.WriteString("🔧 Stock Monitor control panel\n")
	b.WriteString("Tracked products:\n")
	for _, p := range products {
		fmt.Fprintf(&b, "• %s (%s) at %s\n", p.Name, p.ID, p.Store)
	}
	b.WriteString("Actions: 📊 current stock, 📈 statistics (week, month)")
	return b.String()
}

func (r *TextRenderer) RenderCurrentStock(productName, store string, quantity int, at time.Time) string {
	return fmt.Sprintf("📊 Current stock:\n🎯 %s\n🏪 %s\n📦 Available: %d pcs.\n⏰ %s",
		productName, store, quantity, at.In(r.loc).Format("15:04 02.01.2006"))
}

func (r *TextRenderer) RenderStatistics(window model.Window, series []model.DayStat) string {
	if len(series) == 0 {
		return NoDataMessage
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📈 Statistics for the %s:\n\n", window)
	for _, d := range series {
		if d.Restock {
			fmt.Fprintf(&b, "%s - %d pcs. %s\n", d.Date, d.Peak, RestockMarker)
		} else {
			fmt.Fprintf(&b, "%s - %d pcs.\n", d.Date, d.Peak)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderNotification is the text of a delivered restock message. The same
// text is re-rendered with a check mark once acknowledged.
func (r *TextRenderer) RenderNotification(n model.RestockNotification, product model.TrackedProduct) string {
	name := product.Name
	if name == "" {
		name = n.ProductID
	}
	text := fmt.Sprintf("%s %s\n🏪 %s\n📦 %d → %d pcs. (+%d)\n⏰ %s",
		RestockMarker, name, product.Store, n.OldQuantity, n.NewQuantity, n.Increase,
		n.CreatedAt.In(r.loc).Format("15:04 02.01.2006"))
	if n.Acknowledged {
		text += "\n✅ acknowledged"
	}
	return text
}

func (r *TextRenderer) RenderError(message string) string {
	return "❌ " + message
}
