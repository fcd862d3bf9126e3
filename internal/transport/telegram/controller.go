package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/KotFed0t/crypto_demo_bot/data/session"
	"github.com/KotFed0t/crypto_demo_bot/internal/converter/telebotConverter"
	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/KotFed0t/crypto_demo_bot/internal/model/tg/tgCallback"
	"github.com/KotFed0t/crypto_demo_bot/internal/service"
	"github.com/KotFed0t/crypto_demo_bot/utils"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const internalErrMsg = "something went wrong, try again later"

type DemoLedgerService interface {
	GetOrCreateAccount(ctx context.Context, chatID int64) (model.Account, error)
	Buy(ctx context.Context, chatID int64, symbol string, quantity decimal.Decimal, price *decimal.Decimal) (model.TradeResult, error)
	Sell(ctx context.Context, chatID int64, symbol string, quantity decimal.Decimal, price *decimal.Decimal) (model.TradeResult, error)
	GetBalance(ctx context.Context, chatID int64) (model.Account, error)
	GetPortfolio(ctx context.Context, chatID int64) (model.Valuation, error)
	GetHistory(ctx context.Context, chatID int64, limit int) ([]model.Transaction, error)
	Reset(ctx context.Context, chatID int64) error
	ExportHistory(ctx context.Context, chatID int64) (*bytes.Buffer, error)

	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	AddToWatchlist(ctx context.Context, chatID int64, symbol string) error
	RemoveFromWatchlist(ctx context.Context, chatID int64, symbol string) error
	GetWatchlist(ctx context.Context, chatID int64) ([]string, map[string]decimal.Decimal, error)

	CreateAlert(ctx context.Context, chatID int64, symbol string, direction model.AlertDirection, threshold decimal.Decimal) (model.Alert, error)
	GetAlerts(ctx context.Context, chatID int64) ([]model.Alert, error)
	DeleteAlert(ctx context.Context, chatID, alertID int64) error

	SaveApiKeys(ctx context.Context, chatID int64, apiKey, apiSecret string) error
	DisconnectApi(ctx context.Context, chatID int64) error
}

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
	DeleteSession(ctx context.Context, key string) error
}

type Controller struct {
	demoLedgerService DemoLedgerService
	session           Session
}

func NewController(demoLedgerService DemoLedgerService, session Session) *Controller {
	return &Controller{
		demoLedgerService: demoLedgerService,
		session:           session,
	}
}

func (ctrl *Controller) Start(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	account, err := ctrl.demoLedgerService.GetOrCreateAccount(ctx, c.Chat().ID)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send(fmt.Sprintf(
		"👋 Welcome to the crypto demo trader!\n\n"+
			"You have a virtual account with $%s to practice on real prices.\n\n"+
			"/price SYMBOL - current price\n"+
			"/buy SYMBOL QTY [PRICE] - buy\n"+
			"/sell SYMBOL QTY [PRICE] - sell\n"+
			"/balance - cash balance\n"+
			"/portfolio - positions and P&L\n"+
			"/history - recent transactions\n"+
			"/export - full history as xlsx\n"+
			"/reset - start over\n"+
			"/watchlist /addwatch /delwatch - watchlist\n"+
			"/alert /alerts - price alerts\n"+
			"/connect /disconnect - exchange API keys",
		account.CashBalance.StringFixed(2),
	))
}

func (ctrl *Controller) Price(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	args := c.Args()
	if len(args) != 1 {
		return c.Send("usage: /price SYMBOL, e.g. /price BTC")
	}

	symbol := strings.ToUpper(args[0])

	price, err := ctrl.demoLedgerService.GetPrice(ctx, symbol)
	if err != nil {
		return c.Send(errorMessage(err))
	}

	return c.Send(telebotConverter.PriceResponse(symbol, price))
}

func (ctrl *Controller) Buy(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	if len(c.Args()) == 0 {
		return ctrl.initTradeParamsInput(ctx, c, model.ExpectingBuyParams, "Enter buy params: SYMBOL QTY [PRICE]\ne.g. BTC 0.1 or BTC 0.1 65000")
	}

	return ctrl.processTrade(ctx, c, model.SideBuy, strings.Join(c.Args(), " "))
}

func (ctrl *Controller) Sell(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	if len(c.Args()) == 0 {
		return ctrl.initTradeParamsInput(ctx, c, model.ExpectingSellParams, "Enter sell params: SYMBOL QTY [PRICE]\ne.g. BTC 0.1 or BTC 0.1 65000")
	}

	return ctrl.processTrade(ctx, c, model.SideSell, strings.Join(c.Args(), " "))
}

func (ctrl *Controller) initTradeParamsInput(ctx context.Context, c tele.Context, state model.State, prompt string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return c.Send(internalErrMsg)
	}

	chatSession.State = state
	err = ctrl.session.SetSession(ctx, strconv.FormatInt(c.Chat().ID, 10), chatSession)
	if err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(prompt)
}

func (ctrl *Controller) ProcessBuyParams(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	defer ctrl.resetSessionState(ctx, c)
	return ctrl.processTrade(ctx, c, model.SideBuy, c.Message().Text)
}

func (ctrl *Controller) ProcessSellParams(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	defer ctrl.resetSessionState(ctx, c)
	return ctrl.processTrade(ctx, c, model.SideSell, c.Message().Text)
}

func (ctrl *Controller) processTrade(ctx context.Context, c tele.Context, side model.Side, args string) error {
	symbol, quantity, price, err := parseTradeArgs(args)
	if err != nil {
		return c.Send("can't parse params, expected: SYMBOL QTY [PRICE]")
	}

	var res model.TradeResult
	if side == model.SideBuy {
		res, err = ctrl.demoLedgerService.Buy(ctx, c.Chat().ID, symbol, quantity, price)
	} else {
		res, err = ctrl.demoLedgerService.Sell(ctx, c.Chat().ID, symbol, quantity, price)
	}
	if err != nil {
		return c.Send(errorMessage(err))
	}

	return c.Send(telebotConverter.TradeResultResponse(res))
}

func (ctrl *Controller) Balance(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	account, err := ctrl.demoLedgerService.GetBalance(ctx, c.Chat().ID)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.BalanceResponse(account))
}

func (ctrl *Controller) Portfolio(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	valuation, err := ctrl.demoLedgerService.GetPortfolio(ctx, c.Chat().ID)
	if err != nil {
		return c.Send(errorMessage(err))
	}

	return c.Send(telebotConverter.PortfolioResponse(valuation))
}

func (ctrl *Controller) History(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	limit := 0
	if args := c.Args(); len(args) == 1 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed <= 0 {
			return c.Send("usage: /history [N]")
		}
		limit = parsed
	}

	transactions, err := ctrl.demoLedgerService.GetHistory(ctx, c.Chat().ID, limit)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.HistoryResponse(transactions))
}

func (ctrl *Controller) Export(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	report, err := ctrl.demoLedgerService.ExportHistory(ctx, c.Chat().ID)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	doc := &tele.Document{
		File:     tele.FromReader(report),
		FileName: fmt.Sprintf("transactions_%s.xlsx", time.Now().Format("2006-01-02")),
	}

	return c.Send(doc)
}

func (ctrl *Controller) Reset(c tele.Context) error {
	return c.Send(
		"⚠️ Reset restores the starting balance and closes all positions. Past transactions stay in the export as archived. Continue?",
		telebotConverter.ResetConfirmMarkup(),
	)
}

func (ctrl *Controller) ProcessResetConfirm(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	err := ctrl.demoLedgerService.Reset(ctx, c.Chat().ID)
	if err != nil {
		return c.Edit(internalErrMsg)
	}

	return c.Edit("✅ Account reset, good luck this time!")
}

func (ctrl *Controller) ProcessResetCancel(c tele.Context) error {
	return c.Edit("↩️ Reset cancelled")
}

func (ctrl *Controller) AddWatch(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	args := c.Args()
	if len(args) != 1 {
		return c.Send("usage: /addwatch SYMBOL")
	}

	symbol := strings.ToUpper(args[0])

	err := ctrl.demoLedgerService.AddToWatchlist(ctx, c.Chat().ID, symbol)
	if err != nil {
		return c.Send(errorMessage(err))
	}

	return c.Send(fmt.Sprintf("👀 %s added to watchlist", symbol))
}

func (ctrl *Controller) DelWatch(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	args := c.Args()
	if len(args) != 1 {
		return c.Send("usage: /delwatch SYMBOL")
	}

	symbol := strings.ToUpper(args[0])

	err := ctrl.demoLedgerService.RemoveFromWatchlist(ctx, c.Chat().ID, symbol)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Send(fmt.Sprintf("%s is not in your watchlist", symbol))
		}
		return c.Send(internalErrMsg)
	}

	return c.Send(fmt.Sprintf("🗑 %s removed from watchlist", symbol))
}

func (ctrl *Controller) Watchlist(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	symbols, prices, err := ctrl.demoLedgerService.GetWatchlist(ctx, c.Chat().ID)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.WatchlistResponse(symbols, prices))
}

func (ctrl *Controller) Alert(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	if len(c.Args()) == 0 {
		return ctrl.initTradeParamsInput(ctx, c, model.ExpectingAlertParams, "Enter alert params: SYMBOL above|below PRICE\ne.g. BTC above 70000")
	}

	return ctrl.processAlert(ctx, c, strings.Join(c.Args(), " "))
}

func (ctrl *Controller) ProcessAlertParams(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	defer ctrl.resetSessionState(ctx, c)
	return ctrl.processAlert(ctx, c, c.Message().Text)
}

func (ctrl *Controller) processAlert(ctx context.Context, c tele.Context, args string) error {
	symbol, direction, threshold, err := parseAlertArgs(args)
	if err != nil {
		return c.Send("can't parse params, expected: SYMBOL above|below PRICE")
	}

	alert, err := ctrl.demoLedgerService.CreateAlert(ctx, c.Chat().ID, symbol, direction, threshold)
	if err != nil {
		return c.Send(errorMessage(err))
	}

	return c.Send(fmt.Sprintf("🔔 Alert set: %s %s %s", alert.Symbol, alert.Direction, alert.Threshold.String()))
}

func (ctrl *Controller) Alerts(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	alerts, err := ctrl.demoLedgerService.GetAlerts(ctx, c.Chat().ID)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.AlertsResponse(alerts)
	return c.Send(text, markup)
}

// DelAlert deletes an alert by its number in the /alerts listing.
func (ctrl *Controller) DelAlert(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	args := c.Args()
	if len(args) != 1 {
		return c.Send("usage: /delalert N, numbers are shown by /alerts")
	}

	num, err := strconv.Atoi(args[0])
	if err != nil || num <= 0 {
		return c.Send("usage: /delalert N, numbers are shown by /alerts")
	}

	alerts, err := ctrl.demoLedgerService.GetAlerts(ctx, c.Chat().ID)
	if err != nil {
		return c.Send(internalErrMsg)
	}
	if num > len(alerts) {
		return c.Send("no alert with that number, check /alerts")
	}

	err = ctrl.demoLedgerService.DeleteAlert(ctx, c.Chat().ID, alerts[num-1].AlertID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Send("alert not found, maybe it already fired")
		}
		return c.Send(internalErrMsg)
	}

	return c.Send("🗑 Alert deleted")
}

func (ctrl *Controller) ProcessDelAlert(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	data := strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(c.Callback().Data, "\f")), tgCallback.DelAlertPrefix)
	alertID, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		return c.Edit(internalErrMsg)
	}

	err = ctrl.demoLedgerService.DeleteAlert(ctx, c.Chat().ID, alertID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Edit("alert not found, maybe it already fired")
		}
		return c.Edit(internalErrMsg)
	}

	return c.Edit("🗑 Alert deleted")
}

func (ctrl *Controller) InitConnect(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingApiKey
	chatSession.ApiKey = ""
	err = ctrl.session.SetSession(ctx, strconv.FormatInt(c.Chat().ID, 10), chatSession)
	if err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send("🔑 Enter your exchange API key:")
}

func (ctrl *Controller) ProcessApiKey(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.ApiKey = strings.TrimSpace(c.Message().Text)
	chatSession.State = model.ExpectingApiSecret
	err = ctrl.session.SetSession(ctx, strconv.FormatInt(c.Chat().ID, 10), chatSession)
	if err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send("Now enter the API secret:")
}

func (ctrl *Controller) ProcessApiSecret(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	apiSecret := strings.TrimSpace(c.Message().Text)

	// сбрасываем сессию в любом случае, ключи в ней не держим
	defer func() {
		_ = ctrl.session.DeleteSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
	}()

	err = ctrl.demoLedgerService.SaveApiKeys(ctx, c.Chat().ID, chatSession.ApiKey, apiSecret)
	if err != nil {
		return c.Send(errorMessage(err))
	}

	return c.Send("✅ API keys saved")
}

func (ctrl *Controller) Disconnect(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	err := ctrl.demoLedgerService.DisconnectApi(ctx, c.Chat().ID)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("🔌 API keys removed")
}

func (ctrl *Controller) resetSessionState(ctx context.Context, c tele.Context) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return
	}

	chatSession.State = model.DefaultState
	err = ctrl.session.SetSession(ctx, strconv.FormatInt(c.Chat().ID, 10), chatSession)
	if err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
	}
}

func (ctrl *Controller) getSessionFromTeleCtxOrStorage(ctx context.Context, c tele.Context) (model.Session, error) {
	chatSession, ok := c.Get("session").(model.Session)
	if ok {
		return chatSession, nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession, err := ctrl.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
		return model.Session{}, err
	}
	return chatSession, nil
}

func parseTradeArgs(args string) (symbol string, quantity decimal.Decimal, price *decimal.Decimal, err error) {
	parts := strings.Fields(args)
	if len(parts) < 2 || len(parts) > 3 {
		return "", decimal.Decimal{}, nil, service.ErrInvalidInput
	}

	symbol = strings.ToUpper(parts[0])

	quantity, err = decimal.NewFromString(parts[1])
	if err != nil {
		return "", decimal.Decimal{}, nil, service.ErrInvalidInput
	}

	if len(parts) == 3 {
		parsed, err := decimal.NewFromString(parts[2])
		if err != nil {
			return "", decimal.Decimal{}, nil, service.ErrInvalidInput
		}
		price = &parsed
	}

	return symbol, quantity, price, nil
}

func parseAlertArgs(args string) (symbol string, direction model.AlertDirection, threshold decimal.Decimal, err error) {
	parts := strings.Fields(args)
	if len(parts) != 3 {
		return "", "", decimal.Decimal{}, service.ErrInvalidInput
	}

	symbol = strings.ToUpper(parts[0])

	switch strings.ToLower(parts[1]) {
	case "above":
		direction = model.AlertAbove
	case "below":
		direction = model.AlertBelow
	default:
		return "", "", decimal.Decimal{}, service.ErrInvalidInput
	}

	threshold, err = decimal.NewFromString(parts[2])
	if err != nil {
		return "", "", decimal.Decimal{}, service.ErrInvalidInput
	}

	return symbol, direction, threshold, nil
}

func errorMessage(err error) string {
	var fundsErr *service.InsufficientFundsError
	if errors.As(err, &fundsErr) {
		return fmt.Sprintf("❌ Not enough cash, you are $%s short", fundsErr.Shortfall.StringFixed(2))
	}

	var holdingsErr *service.InsufficientHoldingsError
	if errors.As(err, &holdingsErr) {
		return fmt.Sprintf("❌ Not enough holdings, you are %s short", holdingsErr.Shortfall.String())
	}

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return "❌ Invalid input, check symbol and amounts"
	case errors.Is(err, service.ErrNotFound):
		return "❌ Symbol not found"
	case errors.Is(err, service.ErrPriceUnavailable):
		return "❌ Price source is unavailable right now, try again later"
	default:
		return internalErrMsg
	}
}
