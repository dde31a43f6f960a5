package notify

import (
	"context"
	"fmt"
	"strings"

	"tender-scraper/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// MaxMessageLen is Telegram's limit for one text message
const MaxMessageLen = 4096

// how many records are listed in one batch summary
const maxListed = 25

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts scrape results to a Telegram chat
type Notifier struct {
	bot    sender
	chatID int64
	logger *zap.Logger
}

// NewNotifier connects to the bot API with token. The token is checked with
// a getMe call.
func NewNotifier(token string, chatID int64, logger *zap.Logger) (*Notifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newNotifier(bot, chatID, logger), nil
}

func newNotifier(bot sender, chatID int64, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{bot: bot, chatID: chatID, logger: logger}
}

func (n *Notifier) Name() string { return "telegram" }

// Write sends a summary of the batch
func (n *Notifier) Write(ctx context.Context, batch *models.Batch) error {
	if len(batch.Records) == 0 {
		return nil
	}
	return n.Send(ctx, FormatBatch(batch))
}

// NotifyFailure reports a run that produced nothing
func (n *Notifier) NotifyFailure(ctx context.Context, err error) error {
	return n.Send(ctx, fmt.Sprintf("❌ Tender scrape failed: %v", err))
}

// Send posts text, split into as many messages as needed.
func (n *Notifier) Send(ctx context.Context, text string) error {
	parts := splitMessage(text, MaxMessageLen)
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(n.chatID, part)
		msg.DisableWebPagePreview = true
		if _, err := n.bot.Send(msg); err != nil {
			return fmt.Errorf("failed to send message %d/%d: %w", i+1, len(parts), err)
		}
	}
	n.logger.Debug("telegram message sent", zap.Int64("chat_id", n.chatID), zap.Int("parts", len(parts)))
	return nil
}

// FormatBatch renders the batch as a plain text chat message
func FormatBatch(batch *models.Batch) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 %d tender records\n", len(batch.Records))
	fmt.Fprintf(&sb, "Source: %s\n", batch.SourceURL)
	if batch.Strategy != "" {
		fmt.Fprintf(&sb, "Strategy: %s\n", batch.Strategy)
	}
	if !batch.ScrapedAt.IsZero() {
		fmt.Fprintf(&sb, "Scraped at: %s\n", batch.ScrapedAt.Format("2006-01-02 15:04 MST"))
	}
	sb.WriteString("\n")

	for i, r := range batch.Records {
		if i == maxListed {
			fmt.Fprintf(&sb, "… and %d more\n", len(batch.Records)-maxListed)
			break
		}
		title := r.Summary()
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, title)
		if link, ok := r.FirstLink(); ok {
			fmt.Fprintf(&sb, "   %s\n", link.URL)
		}
	}
	return sb.String()
}

// splitMessage splits text into chunks of at most maxLen bytes, breaking on
// newlines where possible.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if current.Len()+len(line)+1 > maxLen {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			for len(line) >= maxLen {
				cut := runeBoundary(line, maxLen)
				parts = append(parts, line[:cut])
				line = line[cut:]
			}
		}
		current.WriteString(line)
		current.WriteString("\n")
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// runeBoundary backs n off so that s[:n] does not end inside a UTF-8 sequence.
// Invalid input with no rune start before n is cut at n.
func runeBoundary(s string, n int) int {
	cut := n
	for cut > 0 && cut < len(s) && s[cut]&0xC0 == 0x80 {
		cut--
	}
	if cut == 0 {
		return n
	}
	return cut
}
