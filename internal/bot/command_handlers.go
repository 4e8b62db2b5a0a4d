package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nambo/internal/markdown"
	"nambo/internal/memory"
)

const welcomeText = `🤖 *Hi, I'm Nambo, your NVC mentor\!*

I help you practice non\-violent communication:

– Ask me to rephrase something you want to say
– Tell me about a situation and I'll help you respond empathically
– Start over any time with /new
– See what I remember with /summary and /history

You can try something like _"please rephrase: you always ask me so many questions, I feel like I'm being interrogated"_ or _"My boss just insulted me for my work quality"_\.`

const (
	newChatText      = "🆕 New chat started\\. What would you like to rephrase or think through?"
	emptyHistoryText = "✖️ Nothing here yet\\. Send me a message to start\\."
	summaryHeader    = "📝 *What I remember so far:*\n\n"
	historyHeader    = "📜 *Our conversation:*\n\n"

	// Escaping at most doubles the summary, and truncate may add one rune.
	summaryRunes = (telegramMessageMaxLength - len(summaryHeader) - 1) / 2
)

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, welcomeText, b.menuKeyboard)
}

func (b *Bot) handleNewChatCommand(ctx context.Context, chatID int64) error {
	b.session(chatID).Reset()

	return b.sendMessageWithKeyboard(ctx, chatID, newChatText, nil)
}

func (b *Bot) handleSummaryCommand(ctx context.Context, chatID int64) error {
	summary := b.session(chatID).Summary()
	if summary == memory.InitialSummary {
		return b.sendMessageWithKeyboard(ctx, chatID, emptyHistoryText, b.menuKeyboard)
	}

	return b.sendMessageWithKeyboard(ctx, chatID, summaryHeader+markdown.EscapeV2(truncate(summary, summaryRunes)), b.menuKeyboard)
}

func (b *Bot) handleHistoryCommand(ctx context.Context, chatID int64) error {
	history := b.session(chatID).History()
	if len(history) == 0 {
		return b.sendMessageWithKeyboard(ctx, chatID, emptyHistoryText, b.menuKeyboard)
	}

	var messages []string
	var current strings.Builder
	current.WriteString(historyHeader)

	for i, exchange := range history {
		entry := fmt.Sprintf("*%d\\. You:* %s\n*Nambo:* %s\n\n",
			i+1,
			markdown.EscapeV2(truncate(exchange.Input, historyEntryRunes)),
			markdown.EscapeV2(truncate(exchange.Output, historyEntryRunes)),
		)

		if current.Len()+len(entry) > telegramMessageMaxLength {
			messages = append(messages, current.String())
			current.Reset()
		}
		current.WriteString(entry)
	}
	messages = append(messages, current.String())

	var errs []error
	for i, message := range messages {
		var err error
		if i == len(messages)-1 {
			err = b.sendMessageWithKeyboard(ctx, chatID, message, b.menuKeyboard)
		} else {
			err = b.sendMessageWithKeyboard(ctx, chatID, message, nil)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("send history message: %w", err))
		}
	}

	return errors.Join(errs...)
}
