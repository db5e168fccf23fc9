package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/prompt"
)

const callbackSep = "|"

// ThreadRef addresses interview thread, the header message in a group chat
type ThreadRef struct {
	ChatID    int64
	MessageID int
}

func (r ThreadRef) String() string {
	return fmt.Sprintf("%d:%d", r.ChatID, r.MessageID)
}

// ParseThreadRef is inverse of ThreadRef.String
func ParseThreadRef(s string) (ThreadRef, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return ThreadRef{}, errors.Errorf("malformed thread reference %q", s)
	}
	chatID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ThreadRef{}, errors.Wrapf(err, "malformed thread chat %q", s)
	}
	msgID, err := strconv.Atoi(parts[1])
	if err != nil {
		return ThreadRef{}, errors.Wrapf(err, "malformed thread message %q", s)
	}
	return ThreadRef{ChatID: chatID, MessageID: msgID}, nil
}

func userID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(err, "malformed user id %q", s)
	}
	return id, nil
}

// Transport implements hiring.Transport on top of telegram. Prompts are
// direct messages, threads are header messages in a group chat.
type Transport struct {
	api     API
	prompts *prompt.Registry
}

func NewTransport(api API, prompts *prompt.Registry) *Transport {
	return &Transport{api: api, prompts: prompts}
}

func (t *Transport) send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, err := t.api.Send(c)
	return msg, errors.Wrap(err, "telegram send")
}

// message builds message for a user id or a thread reference
func message(target, text string) (tgbotapi.MessageConfig, error) {
	if strings.Contains(target, ":") {
		ref, err := ParseThreadRef(target)
		if err != nil {
			return tgbotapi.MessageConfig{}, err
		}
		msg := tgbotapi.NewMessage(ref.ChatID, text)
		msg.ReplyToMessageID = ref.MessageID
		return msg, nil
	}
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, errors.Wrapf(err, "malformed chat id %q", target)
	}
	return tgbotapi.NewMessage(chatID, text), nil
}

func (t *Transport) SendPrompt(ctx context.Context, target string, p hiring.Prompt) (hiring.PromptHandle, error) {
	msg, err := message(target, p.Text)
	if err != nil {
		return "", err
	}

	h := t.prompts.Register(target, p.Options)
	if len(p.Options) > 0 {
		var row []tgbotapi.InlineKeyboardButton
		for _, o := range p.Options {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(o, string(h)+callbackSep+o))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	} else {
		msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true, Selective: true}
	}

	if _, err := t.send(msg); err != nil {
		return "", err
	}
	return h, nil
}

func (t *Transport) AwaitResponse(ctx context.Context, h hiring.PromptHandle, timeout time.Duration) (hiring.Response, error) {
	return t.prompts.Await(ctx, h, timeout)
}

func (t *Transport) Notify(ctx context.Context, target, text string) error {
	msg, err := message(target, text)
	if err != nil {
		return err
	}
	_, err = t.send(msg)
	return err
}

// CreateThread posts header message in channel, its reply chain is the thread
func (t *Transport) CreateThread(ctx context.Context, channel, name string) (string, error) {
	chatID, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return "", errors.Wrapf(err, "malformed hiring chat %q", channel)
	}
	sent, err := t.send(tgbotapi.NewMessage(chatID, "🧵 "+name))
	if err != nil {
		return "", err
	}
	return ThreadRef{ChatID: chatID, MessageID: sent.MessageID}.String(), nil
}

// AddMember mentions user in the thread and tells them where it is
func (t *Transport) AddMember(ctx context.Context, threadRef, user string) error {
	ref, err := ParseThreadRef(threadRef)
	if err != nil {
		return err
	}
	id, err := userID(user)
	if err != nil {
		return err
	}

	mention := tgbotapi.NewMessage(ref.ChatID, fmt.Sprintf("[member](tg://user?id=%d) joined", id))
	mention.ReplyToMessageID = ref.MessageID
	mention.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.send(mention); err != nil {
		return err
	}

	// users who never talked to the bot can not get direct messages, the mention is enough
	_, _ = t.api.Send(tgbotapi.NewMessage(int64(id), "You were added to an interview thread, reply to the thread message to participate."))
	return nil
}

// RemoveMember removes user from the group chat of the thread. The ban is
// lifted immediately so the user may be invited again later.
func (t *Transport) RemoveMember(ctx context.Context, threadRef, user, reason string) error {
	ref, err := ParseThreadRef(threadRef)
	if err != nil {
		return err
	}
	id, err := userID(user)
	if err != nil {
		return err
	}

	member := tgbotapi.ChatMemberConfig{ChatID: ref.ChatID, UserID: id}
	if _, err := t.api.KickChatMember(tgbotapi.KickChatMemberConfig{ChatMemberConfig: member}); err != nil {
		return errors.Wrapf(err, "kick %d (%s)", id, reason)
	}
	if _, err := t.api.UnbanChatMember(member); err != nil {
		return errors.Wrapf(err, "unban %d", id)
	}

	notice := tgbotapi.NewMessage(ref.ChatID, fmt.Sprintf("A member left the thread: %s", reason))
	notice.ReplyToMessageID = ref.MessageID
	_, err = t.send(notice)
	return err
}

// Answer routes callback data "handle|value" to the pending prompt
func (t *Transport) Answer(from int, data string) error {
	parts := strings.SplitN(data, callbackSep, 2)
	if len(parts) != 2 {
		return errors.Errorf("malformed callback data %q", data)
	}
	return t.prompts.Resolve(hiring.PromptHandle(parts[0]), strconv.Itoa(from), parts[1])
}

// Reply routes free text of user to their newest free text prompt. It
// reports false when nothing is waiting.
func (t *Transport) Reply(from int, text string) (bool, error) {
	user := strconv.Itoa(from)
	h, ok := t.prompts.Latest(user)
	if !ok {
		return false, nil
	}
	return true, t.prompts.Resolve(h, user, text)
}
