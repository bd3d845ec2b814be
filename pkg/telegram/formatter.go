package telegram

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang-stock-backtester/internal/domain"
)

// FormatEntrySignal formats a BUY decision as a Markdown message.
func FormatEntrySignal(ticker string, sig domain.EntrySignal, price float64) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🟢 *BUY Signal: %s*\n\n", ticker))
	b.WriteString(fmt.Sprintf("💴 *Price:* ¥%.1f\n", price))
	b.WriteString(fmt.Sprintf("🎯 *Confidence:* %.0f%%\n", sig.Confidence*100))
	if sig.Score != nil {
		b.WriteString(fmt.Sprintf("📊 *Composite Score:* %.1f\n", sig.Score.Composite))
		for _, name := range sortedComponents(sig.Score.Components) {
			b.WriteString(fmt.Sprintf("  • %s: %.1f\n", name, sig.Score.Components[name]))
		}
	}
	b.WriteString(fmt.Sprintf("🧭 *Strategy:* %s\n", sig.Strategy))
	writeReasons(&b, sig.Reasons)
	return b.String()
}

// FormatExitSignal formats an EXIT or REDUCE decision as a Markdown message.
func FormatExitSignal(ticker string, sig domain.ExitSignal, pos *domain.Position, price float64, asOf time.Time) string {
	var icon string
	switch sig.Urgency {
	case domain.UrgencyEmergency:
		icon = "🚨"
	case domain.UrgencyHigh:
		icon = "🔴"
	default:
		icon = "🟠"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s *%s Signal: %s*\n\n", icon, sig.Action, ticker))
	b.WriteString(fmt.Sprintf("⚡ *Urgency:* %s\n", sig.Urgency))
	b.WriteString(fmt.Sprintf("🧱 *Layer:* %s\n", sig.Layer))
	b.WriteString(fmt.Sprintf("💴 *Price:* ¥%.1f\n", price))
	if pos != nil {
		b.WriteString(fmt.Sprintf("📈 *Gain:* %.1f%%\n", pos.GainPct(price)*100))
		b.WriteString(fmt.Sprintf("📅 *Held:* %d days\n", pos.HoldingDays(asOf)))
	}
	writeReasons(&b, sig.Reasons)
	return b.String()
}

func writeReasons(b *strings.Builder, reasons []string) {
	if len(reasons) == 0 {
		return
	}
	b.WriteString("\n📝 *Reasons:*\n")
	for _, r := range reasons {
		b.WriteString(fmt.Sprintf("  • %s\n", r))
	}
}

func sortedComponents(components map[string]float64) []string {
	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
