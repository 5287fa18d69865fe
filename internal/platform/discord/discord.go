package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/modkit/ticketing/internal/platform"
)

// threadAutoArchiveMinutes keeps ticket threads visible for a week before
// Discord auto-archives them; closure archives explicitly regardless.
const threadAutoArchiveMinutes = 10080

// Adapter implements platform.Client over a discordgo session.
type Adapter struct {
	session *discordgo.Session
}

// New wraps an established discordgo session.
func New(session *discordgo.Session) *Adapter {
	return &Adapter{session: session}
}

// Connect opens a gateway session for the given bot token.
func Connect(token string) (*Adapter, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("open discord gateway: %w", err)
	}
	return &Adapter{session: session}, nil
}

// Close shuts the gateway session down.
func (a *Adapter) Close() error {
	return a.session.Close()
}

func (a *Adapter) CreateThread(ctx context.Context, channelID, title string) (string, error) {
	thread, err := a.session.ThreadStartComplex(channelID, &discordgo.ThreadStart{
		Name:                title,
		Type:                discordgo.ChannelTypeGuildPublicThread,
		AutoArchiveDuration: threadAutoArchiveMinutes,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("start thread in %s: %w", channelID, err)
	}
	return thread.ID, nil
}

func (a *Adapter) AddThreadMember(ctx context.Context, threadID, userID string) error {
	if err := a.session.ThreadMemberAdd(threadID, userID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add member %s to thread %s: %w", userID, threadID, err)
	}
	return nil
}

func (a *Adapter) SendMessage(ctx context.Context, channelID string, msg platform.Message) (string, error) {
	send := &discordgo.MessageSend{Content: msg.Content}
	if embed := buildEmbed(msg); embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{embed}
	}
	if rows := buildComponents(msg.Controls); len(rows) > 0 {
		send.Components = rows
	}
	sent, err := a.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send message to %s: %w", channelID, err)
	}
	return sent.ID, nil
}

func (a *Adapter) EditMessage(ctx context.Context, channelID, messageID string, msg platform.Message) error {
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.SetContent(msg.Content)
	embeds := []*discordgo.MessageEmbed{}
	if embed := buildEmbed(msg); embed != nil {
		embeds = append(embeds, embed)
	}
	edit.SetEmbeds(embeds)
	rows := buildComponents(msg.Controls)
	edit.Components = &rows
	if _, err := a.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("edit message %s in %s: %w", messageID, channelID, err)
	}
	return nil
}

func (a *Adapter) PinMessage(ctx context.Context, channelID, messageID string) error {
	if err := a.session.ChannelMessagePin(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("pin message %s in %s: %w", messageID, channelID, err)
	}
	return nil
}

func (a *Adapter) DisableControls(ctx context.Context, channelID, messageID string) error {
	current, err := a.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetch message %s in %s: %w", messageID, channelID, err)
	}
	if len(current.Components) == 0 {
		return nil
	}
	disabled := make([]discordgo.MessageComponent, 0, len(current.Components))
	for _, component := range current.Components {
		disabled = append(disabled, disableComponent(component))
	}
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.Components = &disabled
	if _, err := a.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("disable controls on %s in %s: %w", messageID, channelID, err)
	}
	return nil
}

func (a *Adapter) LockThread(ctx context.Context, threadID string) error {
	locked := true
	archived := true
	_, err := a.session.ChannelEditComplex(threadID, &discordgo.ChannelEdit{
		Locked:   &locked,
		Archived: &archived,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("lock thread %s: %w", threadID, err)
	}
	return nil
}

func buildEmbed(msg platform.Message) *discordgo.MessageEmbed {
	if msg.Title == "" && msg.Body == "" && len(msg.Fields) == 0 {
		return nil
	}
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Body,
		Color:       msg.Color,
	}
	for _, field := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   field.Name,
			Value:  field.Value,
			Inline: field.Inline,
		})
	}
	return embed
}

func buildComponents(controls []platform.Control) []discordgo.MessageComponent {
	if len(controls) == 0 {
		return nil
	}
	buttons := make([]discordgo.MessageComponent, 0, len(controls))
	for _, control := range controls {
		buttons = append(buttons, discordgo.Button{
			Label:    control.Label,
			CustomID: control.ID,
			Style:    buttonStyle(control.Style),
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func buttonStyle(style platform.ControlStyle) discordgo.ButtonStyle {
	switch style {
	case platform.ControlSuccess:
		return discordgo.SuccessButton
	case platform.ControlDanger:
		return discordgo.DangerButton
	case platform.ControlSecondary:
		return discordgo.SecondaryButton
	default:
		return discordgo.PrimaryButton
	}
}

func disableComponent(component discordgo.MessageComponent) discordgo.MessageComponent {
	switch c := component.(type) {
	case *discordgo.ActionsRow:
		row := discordgo.ActionsRow{}
		for _, inner := range c.Components {
			row.Components = append(row.Components, disableComponent(inner))
		}
		return row
	case discordgo.ActionsRow:
		row := discordgo.ActionsRow{}
		for _, inner := range c.Components {
			row.Components = append(row.Components, disableComponent(inner))
		}
		return row
	case *discordgo.Button:
		button := *c
		button.Disabled = true
		return button
	case discordgo.Button:
		button := c
		button.Disabled = true
		return button
	case *discordgo.SelectMenu:
		menu := *c
		menu.Disabled = true
		return menu
	case discordgo.SelectMenu:
		menu := c
		menu.Disabled = true
		return menu
	default:
		return component
	}
}
