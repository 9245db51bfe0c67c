package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

const (
	embedColor          = 0x0099ff // Blue
	maxEmbedFields      = 10
	maxEmbedFieldLength = 1024
	maxEmbedTitle       = 256
	maxEmbedTotal       = 6000 // Discord rejects embeds whose text adds up to more
)

// DiscordOptions configures the Discord webhook notifier
type DiscordOptions struct {
	WebhookID    string
	WebhookToken string
	TitlePrefix  string
	HTTPClient   *http.Client // Optional
}

// Discord posts one embed per event to a channel webhook.
type Discord struct {
	session     *discordgo.Session
	webhookID   string
	token       string
	titlePrefix string
}

func NewDiscord(opts DiscordOptions) (*Discord, error) {
	// Webhook calls are authorized by the token in the URL, not a bot token
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	if opts.HTTPClient != nil {
		session.Client = opts.HTTPClient
	}
	session.UserAgent = "sheetwatch/1.0"

	return &Discord{
		session:     session,
		webhookID:   opts.WebhookID,
		token:       opts.WebhookToken,
		titlePrefix: opts.TitlePrefix,
	}, nil
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Notify(ctx context.Context, e Event) error {
	params := &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{d.createEmbed(e)},
	}
	if _, err := d.session.WebhookExecute(d.webhookID, d.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to execute Discord webhook: %w", err)
	}
	return nil
}

// createEmbed lists the newest changed rows as fields keyed by their
// first column.
func (d *Discord) createEmbed(e Event) *discordgo.MessageEmbed {
	var description strings.Builder
	description.WriteString(fmt.Sprintf("**%d** new or changed rows in **%s**", e.Result.NewRecordCount, e.SheetName))
	if e.Result.RowCount > 0 {
		description.WriteString(fmt.Sprintf(" (%d total)", e.Result.RowCount))
	}
	if e.Result.LatestInstanceID != "" {
		description.WriteString(fmt.Sprintf("\nLatest: `%s`", e.Result.LatestInstanceID))
	}

	embed := &discordgo.MessageEmbed{
		Title:       truncate(e.Title(d.titlePrefix), maxEmbedTitle),
		URL:         e.SheetURL,
		Description: description.String(),
		Color:       embedColor,
		Timestamp:   e.CheckedAt.UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: e.SheetID,
		},
	}

	rows := e.Rows
	if len(rows) > maxEmbedFields {
		rows = rows[len(rows)-maxEmbedFields:]
	}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fieldName(row[0]),
			Value: fieldValue(e.Header, row),
		})
	}

	// Oldest rows go first so the newest change always makes it
	for len(embed.Fields) > 0 && embedLength(embed) > maxEmbedTotal {
		embed.Fields = embed.Fields[1:]
	}

	return embed
}

// embedLength counts the characters Discord sums against maxEmbedTotal.
func embedLength(embed *discordgo.MessageEmbed) int {
	n := utf8.RuneCountInString(embed.Title) + utf8.RuneCountInString(embed.Description)
	if embed.Footer != nil {
		n += utf8.RuneCountInString(embed.Footer.Text)
	}
	for _, f := range embed.Fields {
		n += utf8.RuneCountInString(f.Name) + utf8.RuneCountInString(f.Value)
	}
	return n
}

func fieldName(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(blank)"
	}
	return truncate(s, 256)
}

func fieldValue(header, row []string) string {
	var parts []string
	for i := 1; i < len(row); i++ {
		if row[i] == "" {
			continue
		}
		name := fmt.Sprintf("col %d", i+1)
		if i < len(header) && header[i] != "" {
			name = header[i]
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, row[i]))
	}
	if len(parts) == 0 {
		return "-"
	}
	return truncate(strings.Join(parts, "\n"), maxEmbedFieldLength)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
