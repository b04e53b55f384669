package notify

import (
	"fmt"

	"scalpbot/internal/domain"
)

// FormatOutcome renders a closed trade as an alert title and body.
func FormatOutcome(outcome domain.TradeOutcome) (title, body string) {
	verdict := "profit"
	if outcome.RealizedProfit < 0 {
		verdict = "loss"
	}
	title = "Trade closed"
	body = fmt.Sprintf("%s closed with %s %.4f (qty %.6f)",
		outcome.Symbol, verdict, outcome.RealizedProfit, outcome.Quantity)
	return title, body
}
