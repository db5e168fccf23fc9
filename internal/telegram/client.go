// Package telegram is the chat transport of the hiring bot.
package telegram

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// API is subset of bot api used by the transport
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	AnswerCallbackQuery(config tgbotapi.CallbackConfig) (tgbotapi.APIResponse, error)
	KickChatMember(config tgbotapi.KickChatMemberConfig) (tgbotapi.APIResponse, error)
	UnbanChatMember(config tgbotapi.ChatMemberConfig) (tgbotapi.APIResponse, error)
}

// Connect authorizes bot, optionally through SOCKS5 proxy
func Connect(token, proxyAddr string, log logrus.FieldLogger) (*tgbotapi.BotAPI, error) {
	var httpClient *http.Client

	if proxyAddr != "" {
		dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, errors.Wrap(err, "can't connect to the proxy")
		}

		httpClient = &http.Client{Transport: &http.Transport{Dial: dialer.Dial}}
	} else {
		httpClient = &http.Client{}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "can not inittialize telegram bot")
	}

	log.WithField("account", bot.Self.UserName).Info("telegram bot authorized")
	return bot, nil
}

// Listen feeds updates to handle until ctx is done
func Listen(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates, err := bot.GetUpdatesChan(u)
	if err != nil {
		return errors.Wrap(err, "telegram can not get update channel")
	}

	// clear old messages
	time.Sleep(time.Millisecond * 500)
	updates.Clear()

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			handle(update)
		}
	}
}
