package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *models.CallbackQuery) error {
	chatID := callbackChatID(callback)
	if chatID == 0 {
		return b.answerCallback(ctx, callback)
	}

	switch strings.TrimSpace(callback.Data) {
	case callbackNewChat:
		return b.withEmptyCallbackAnswer(ctx, callback, func() error {
			return b.handleNewChatCommand(ctx, chatID)
		})
	case callbackSummary:
		return b.withEmptyCallbackAnswer(ctx, callback, func() error {
			return b.handleSummaryCommand(ctx, chatID)
		})
	case callbackHistory:
		return b.withEmptyCallbackAnswer(ctx, callback, func() error {
			return b.handleHistoryCommand(ctx, chatID)
		})
	}

	return b.answerCallback(ctx, callback)
}

func (b *Bot) withEmptyCallbackAnswer(
	ctx context.Context,
	callback *models.CallbackQuery,
	fn func() error,
) error {
	var errs []error
	if err := fn(); err != nil {
		errs = append(errs, err)
	}
	if err := b.answerCallback(ctx, callback); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (b *Bot) answerCallback(ctx context.Context, callback *models.CallbackQuery) error {
	if _, err := b.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
	}); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	return nil
}
