package tgbot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/KotFed0t/crypto_demo_bot/config"
	"github.com/KotFed0t/crypto_demo_bot/data/session"
	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/KotFed0t/crypto_demo_bot/internal/model/tg/tgCallback"
	"github.com/KotFed0t/crypto_demo_bot/internal/transport/telegram"
	customMW "github.com/KotFed0t/crypto_demo_bot/internal/transport/telegram/middleware"
	"github.com/KotFed0t/crypto_demo_bot/utils"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type TGBot struct {
	bot     *tele.Bot
	ctrl    *telegram.Controller
	session Session
}

func New(cfg *config.Config, ctrl *telegram.Controller, session Session) *TGBot {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TGBot{bot: b, ctrl: ctrl, session: session}
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

// Notify is used by the alerts job to push messages outside of any update.
func (b *TGBot) Notify(chatID int64, message string) error {
	_, err := b.bot.Send(tele.ChatID(chatID), message)
	return err
}

func (b *TGBot) setupRoutes() {
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		// выбор метода контроллера на основе шага пользователя
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)
		chatSession, err := b.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return c.Send("start with one of the commands, see /start")
			}
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send("something went wrong, try again later")
		}

		c.Set("session", chatSession)

		switch chatSession.State {
		case model.ExpectingBuyParams:
			return b.ctrl.ProcessBuyParams(c)
		case model.ExpectingSellParams:
			return b.ctrl.ProcessSellParams(c)
		case model.ExpectingAlertParams:
			return b.ctrl.ProcessAlertParams(c)
		case model.ExpectingApiKey:
			return b.ctrl.ProcessApiKey(c)
		case model.ExpectingApiSecret:
			return b.ctrl.ProcessApiSecret(c)
		default:
			return c.Send("start with one of the commands, see /start")
		}
	})

	b.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		data := strings.TrimSpace(strings.TrimPrefix(c.Callback().Data, "\f"))

		switch {
		case data == tgCallback.ResetConfirm:
			return b.ctrl.ProcessResetConfirm(c)
		case data == tgCallback.ResetCancel:
			return b.ctrl.ProcessResetCancel(c)
		case strings.HasPrefix(data, tgCallback.DelAlertPrefix):
			return b.ctrl.ProcessDelAlert(c)
		default:
			slog.Error("unexpected callback", slog.String("data", data))
			return c.Respond()
		}
	})

	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/price", b.ctrl.Price)
	b.bot.Handle("/buy", b.ctrl.Buy)
	b.bot.Handle("/sell", b.ctrl.Sell)
	b.bot.Handle("/balance", b.ctrl.Balance)
	b.bot.Handle("/portfolio", b.ctrl.Portfolio)
	b.bot.Handle("/history", b.ctrl.History)
	b.bot.Handle("/export", b.ctrl.Export)
	b.bot.Handle("/reset", b.ctrl.Reset)

	b.bot.Handle("/watchlist", b.ctrl.Watchlist)
	b.bot.Handle("/addwatch", b.ctrl.AddWatch)
	b.bot.Handle("/delwatch", b.ctrl.DelWatch)

	b.bot.Handle("/alert", b.ctrl.Alert)
	b.bot.Handle("/alerts", b.ctrl.Alerts)
	b.bot.Handle("/delalert", b.ctrl.DelAlert)

	b.bot.Handle("/connect", b.ctrl.InitConnect)
	b.bot.Handle("/disconnect", b.ctrl.Disconnect)
}
