package telebotConverter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/KotFed0t/crypto_demo_bot/internal/model/tg/tgCallback"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

func money(d decimal.Decimal) string {
	return d.RoundBank(2).StringFixed(2)
}

func signedMoney(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + money(d.Abs())
	}
	return "+$" + money(d)
}

func PriceResponse(symbol string, price decimal.Decimal) string {
	return fmt.Sprintf("💱 %s: $%s", symbol, price.String())
}

func BalanceResponse(account model.Account) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💰 Cash balance: $%s\n", money(account.CashBalance)))
	sb.WriteString(fmt.Sprintf("📥 Total invested: $%s", money(account.TotalInvested)))
	return sb.String()
}

func TradeResultResponse(res model.TradeResult) string {
	var sb strings.Builder

	if res.Side == model.SideBuy {
		sb.WriteString(fmt.Sprintf("✅ Bought %s %s @ $%s\n", res.Quantity.String(), res.Symbol, res.Price.String()))
		sb.WriteString(fmt.Sprintf("💸 Cost: $%s\n", money(res.Notional)))
		sb.WriteString(fmt.Sprintf("📊 Position: %s %s, avg cost $%s\n", res.Position.Quantity.String(), res.Symbol, money(res.Position.AvgCost)))
	} else {
		sb.WriteString(fmt.Sprintf("✅ Sold %s %s @ $%s\n", res.Quantity.String(), res.Symbol, res.Price.String()))
		sb.WriteString(fmt.Sprintf("💸 Proceeds: $%s\n", money(res.Notional)))
		sb.WriteString(fmt.Sprintf("📈 Realized P&L: %s\n", signedMoney(res.RealizedPnl)))
		if res.PositionClosed {
			sb.WriteString(fmt.Sprintf("📊 Position %s closed\n", res.Symbol))
		} else {
			sb.WriteString(fmt.Sprintf("📊 Position: %s %s, avg cost $%s\n", res.Position.Quantity.String(), res.Symbol, money(res.Position.AvgCost)))
		}
	}

	sb.WriteString(fmt.Sprintf("💰 Cash balance: $%s", money(res.CashBalance)))

	return sb.String()
}

func PortfolioResponse(valuation model.Valuation) string {
	var sb strings.Builder

	sb.WriteString("📊 Portfolio\n\n")

	if len(valuation.Positions) == 0 && len(valuation.Unpriced) == 0 {
		sb.WriteString("no open positions\n\n")
	}

	for _, position := range valuation.Positions {
		sb.WriteString(fmt.Sprintf("▸ %s: %s @ avg $%s\n", position.Symbol, position.Quantity.String(), money(position.AvgCost)))
		sb.WriteString(fmt.Sprintf("   price $%s, value $%s, P&L %s\n", position.Price.String(), money(position.MarketValue), signedMoney(position.UnrealizedPnl)))
	}

	if len(valuation.Unpriced) > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠️ no price for: %s (excluded from totals)\n", strings.Join(valuation.Unpriced, ", ")))
	}

	sb.WriteString(fmt.Sprintf("\n💰 Cash: $%s\n", money(valuation.CashBalance)))
	sb.WriteString(fmt.Sprintf("📦 Positions value: $%s\n", money(valuation.TotalMarketValue)))
	sb.WriteString(fmt.Sprintf("📈 Unrealized P&L: %s\n", signedMoney(valuation.TotalUnrealizedPnl)))
	sb.WriteString(fmt.Sprintf("💼 Total account value: $%s\n", money(valuation.TotalValue)))
	sb.WriteString(fmt.Sprintf("🏁 Total P&L: %s", signedMoney(valuation.TotalPnl)))

	return sb.String()
}

func HistoryResponse(transactions []model.Transaction) string {
	if len(transactions) == 0 {
		return "🗒 No transactions yet"
	}

	var sb strings.Builder
	sb.WriteString("🗒 Recent transactions:\n\n")

	for _, transaction := range transactions {
		emoji := "🟢"
		if transaction.Side == model.SideSell {
			emoji = "🔴"
		}

		sb.WriteString(fmt.Sprintf(
			"%s %s %s %s @ $%s = $%s",
			emoji,
			transaction.Side,
			transaction.Quantity.String(),
			transaction.Symbol,
			transaction.Price.String(),
			money(transaction.Notional),
		))

		if transaction.Archived {
			sb.WriteString(" (archived)")
		}

		sb.WriteString(fmt.Sprintf("\n   %s\n", transaction.DtCreate.Format("2006-01-02 15:04:05")))
	}

	return sb.String()
}

func WatchlistResponse(symbols []string, prices map[string]decimal.Decimal) string {
	if len(symbols) == 0 {
		return "👀 Watchlist is empty, add a coin with /addwatch SYMBOL"
	}

	var sb strings.Builder
	sb.WriteString("👀 Watchlist:\n\n")

	for _, symbol := range symbols {
		if price, ok := prices[symbol]; ok {
			sb.WriteString(fmt.Sprintf("▸ %s: $%s\n", symbol, price.String()))
		} else {
			sb.WriteString(fmt.Sprintf("▸ %s: price unavailable\n", symbol))
		}
	}

	return sb.String()
}

func AlertsResponse(alerts []model.Alert) (string, *tele.ReplyMarkup) {
	markup := &tele.ReplyMarkup{}

	if len(alerts) == 0 {
		return "🔕 No active alerts, create one with /alert SYMBOL above|below PRICE", markup
	}

	var sb strings.Builder
	sb.WriteString("🔔 Active alerts:\n\n")

	rows := make([]tele.Row, 0, len(alerts))
	for i, alert := range alerts {
		sb.WriteString(fmt.Sprintf("%d. %s %s %s\n", i+1, alert.Symbol, alert.Direction, alert.Threshold.String()))
		btn := markup.Data(
			fmt.Sprintf("❌ %d. %s %s %s", i+1, alert.Symbol, alert.Direction, alert.Threshold.String()),
			tgCallback.DelAlertPrefix+strconv.FormatInt(alert.AlertID, 10),
		)
		rows = append(rows, markup.Row(btn))
	}

	markup.Inline(rows...)

	return sb.String(), markup
}

func ResetConfirmMarkup() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	confirmBtn := markup.Data("✅ Yes, reset", tgCallback.ResetConfirm)
	cancelBtn := markup.Data("↩️ Cancel", tgCallback.ResetCancel)
	markup.Inline(markup.Row(confirmBtn, cancelBtn))
	return markup
}
