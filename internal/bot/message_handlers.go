package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot/models"

	"nambo/internal/completion"
	"nambo/internal/markdown"
	"nambo/internal/session"
)

const (
	busyText     = "⏳ I'm still thinking about your previous message\\. Please wait a moment\\."
	upstreamText = "❌ I couldn't reach my thoughts just now\\. Please try again\\."
	replyPrefix  = "*Nambo:* "
)

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch {
	case strings.HasPrefix(text, "/start"), strings.HasPrefix(text, "/help"):
		return b.handleStartCommand(ctx, chatID)
	case strings.HasPrefix(text, "/new"):
		return b.handleNewChatCommand(ctx, chatID)
	case strings.HasPrefix(text, "/summary"):
		return b.handleSummaryCommand(ctx, chatID)
	case strings.HasPrefix(text, "/history"):
		return b.handleHistoryCommand(ctx, chatID)
	default:
		return b.handleTurn(ctx, chatID, text)
	}
}

func (b *Bot) handleTurn(ctx context.Context, chatID int64, text string) error {
	if text == "" {
		return nil
	}

	controller := b.session(chatID)
	if controller.Busy() {
		return b.sendMessageWithKeyboard(ctx, chatID, busyText, nil)
	}

	return b.withSpinner(ctx, chatID, func() error {
		exchange, err := controller.Submit(ctx, text)

		switch {
		case err == nil:
		case errors.Is(err, session.ErrEmptyInput), errors.Is(err, session.ErrDiscarded):
			return nil
		case errors.Is(err, session.ErrBusy):
			return b.sendMessageWithKeyboard(ctx, chatID, busyText, nil)
		case completion.IsUpstream(err):
			errs := []error{fmt.Errorf("submit turn: %w", err)}

			if sendErr := b.sendMessageWithKeyboard(ctx, chatID, upstreamText, b.menuKeyboard); sendErr != nil {
				errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
			}

			return errors.Join(errs...)
		default:
			return fmt.Errorf("submit turn: %w", err)
		}

		return b.sendReply(ctx, chatID, exchange.Output)
	})
}

// sendReply sends output split into messages that fit Telegram's limit.
// Only the last one carries the menu keyboard.
func (b *Bot) sendReply(ctx context.Context, chatID int64, output string) error {
	messages := renderReply(output)

	var errs []error
	for i, text := range messages {
		var keyboard *models.InlineKeyboardMarkup
		if i == len(messages)-1 {
			keyboard = b.menuKeyboard
		}

		if err := b.sendMessageWithKeyboard(ctx, chatID, text, keyboard); err != nil {
			errs = append(errs, fmt.Errorf("send reply chunk %d/%d: %w", i+1, len(messages), err))
		}
	}

	return errors.Join(errs...)
}

// renderReply escapes output and splits it so that every rendered message,
// prefix included, stays within telegramMessageMaxLength runes. A chunk
// that grows past the limit when escaped is split again.
func renderReply(output string) []string {
	pending := splitText(output, replyChunkRunes)
	rendered := make([]string, 0, len(pending))

	for len(pending) > 0 {
		chunk := pending[0]
		if chunk == "" {
			pending = pending[1:]
			continue
		}

		text := markdown.EscapeV2WithLinks(chunk)
		if len(rendered) == 0 {
			text = replyPrefix + text
		}

		if n := utf8.RuneCountInString(chunk); n > 1 && utf8.RuneCountInString(text) > telegramMessageMaxLength {
			pending = append(splitText(chunk, n/2), pending[1:]...)
			continue
		}

		rendered = append(rendered, text)
		pending = pending[1:]
	}

	return rendered
}
