package bot

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"nambo/internal/session"
)

const (
	// A turn may take a completion call and a compaction call.
	updateProcessingTimeout = 3 * time.Minute

	sessionIDPrefix = "telegram:"
)

// api is the part of the Telegram client the bot talks to.
type api interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *tgbot.SendChatActionParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error)
}

type Bot struct {
	client       *tgbot.Bot
	api          api
	sessions     *session.Registry
	allowedUsers []int64
	menuKeyboard *models.InlineKeyboardMarkup
	log          *slog.Logger
}

func New(
	token string,
	sessions *session.Registry,
	allowedUsers []int64,
	log *slog.Logger,
) (*Bot, error) {
	b := newBot(nil, sessions, allowedUsers, log)

	client, err := tgbot.New(strings.TrimSpace(token), tgbot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		return nil, err
	}

	b.client = client
	b.api = client

	return b, nil
}

func newBot(
	a api,
	sessions *session.Registry,
	allowedUsers []int64,
	log *slog.Logger,
) *Bot {
	return &Bot{
		api:          a,
		sessions:     sessions,
		allowedUsers: allowedUsers,
		menuKeyboard: getMenuKeyboard(),
		log:          log,
	}
}

// Start long-polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.client.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) handleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		message := update.Message
		chatID := message.Chat.ID

		var userID int64
		var username string
		if message.From != nil {
			userID = message.From.ID
			username = message.From.Username
		}

		if !b.userAllowed(userID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", userID,
				"chatID", chatID,
				"username", username,
				"chatType", message.Chat.Type)

			return
		}

		if err := b.handleMessage(updateCtx, message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", chatID,
				"userID", userID,
				"chatType", message.Chat.Type,
				"messageID", message.ID)
		}

	case update.CallbackQuery != nil:
		callback := update.CallbackQuery
		chatID := callbackChatID(callback)

		if !b.userAllowed(callback.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", callback.From.ID,
				"chatID", chatID,
				"username", callback.From.Username,
				"data", callback.Data)

			return
		}

		if err := b.handleCallbackQuery(updateCtx, callback); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", chatID,
				"userID", callback.From.ID,
				"data", callback.Data)
		}
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	if len(b.allowedUsers) == 0 {
		return true
	}
	return slices.Contains(b.allowedUsers, userID)
}

func (b *Bot) session(chatID int64) *session.Controller {
	return b.sessions.Get(sessionID(chatID))
}

func sessionID(chatID int64) string {
	return sessionIDPrefix + strconv.FormatInt(chatID, 10)
}

func callbackChatID(cb *models.CallbackQuery) int64 {
	if cb != nil && cb.Message.Message != nil {
		return cb.Message.Message.Chat.ID
	}
	if cb != nil && cb.Message.InaccessibleMessage != nil {
		return cb.Message.InaccessibleMessage.Chat.ID
	}

	return 0
}
