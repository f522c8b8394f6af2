// Package discord is the Discord notification adapter.
package discord

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/casabot/innkeeper/internal/notify"
)

// Opts configures the Discord adapter.
type Opts struct {
	BotToken string
	Channel  string
}

// Adapter connects a Discord bot to the host channel. Replies carry the
// referenced message inline, so no local send record is needed.
type Adapter struct {
	opts    Opts
	session *discordgo.Session
	inbound chan notify.Inbound
}

// New validates opts and returns an unconnected adapter.
func New(opts Opts) (*Adapter, error) {
	if opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("discord: channel is required")
	}
	return &Adapter{opts: opts, inbound: make(chan notify.Inbound, 16)}, nil
}

// Connect opens the gateway session with message-content intent.
func (a *Adapter) Connect(ctx context.Context) error {
	session, err := discordgo.New("Bot " + a.opts.BotToken)
	if err != nil {
		return fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	session.AddHandler(a.onMessage)
	session.AddHandler(a.onInteraction)
	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	a.session = session
	return nil
}

func (a *Adapter) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.ChannelID != a.opts.Channel || m.Author == nil || m.Author.Bot || m.Content == "" {
		return
	}
	in := notify.Inbound{Text: m.Content}
	if m.ReferencedMessage != nil {
		in.ReplyToText = m.ReferencedMessage.Content
	}
	select {
	case a.inbound <- in:
	default:
		log.Printf("discord: inbound buffer full, dropping message")
	}
}

func (a *Adapter) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	data := i.MessageComponentData()
	if data.CustomID != notify.ActionApprove && data.CustomID != notify.ActionReject {
		return
	}
	context := ""
	if i.Message != nil {
		context = i.Message.Content
	}
	// Ack so the host's client stops spinning.
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		log.Printf("discord: ack interaction: %v", err)
	}
	select {
	case a.inbound <- notify.Inbound{Action: &notify.Action{Kind: data.CustomID, Context: context}}:
	default:
		log.Printf("discord: inbound buffer full, dropping action")
	}
}

// Listen returns the inbound stream; it closes on context cancellation.
func (a *Adapter) Listen(ctx context.Context) (<-chan notify.Inbound, error) {
	if a.session == nil {
		return nil, fmt.Errorf("discord: not connected")
	}
	out := make(chan notify.Inbound, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case in, ok := <-a.inbound:
				if !ok {
					return
				}
				out <- in
			}
		}
	}()
	return out, nil
}

// Send posts to the host channel, with approve/reject buttons on request.
func (a *Adapter) Send(ctx context.Context, out notify.Outbound) (string, error) {
	if a.session == nil {
		return "", fmt.Errorf("discord: not connected")
	}
	send := &discordgo.MessageSend{Content: out.Text}
	if out.WithActions {
		send.Components = []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Guardar", Style: discordgo.SuccessButton, CustomID: notify.ActionApprove},
				discordgo.Button{Label: "Descartar", Style: discordgo.DangerButton, CustomID: notify.ActionReject},
			}},
		}
	}
	msg, err := a.session.ChannelMessageSendComplex(a.opts.Channel, send)
	if err != nil {
		return "", fmt.Errorf("discord: send message: %w", err)
	}
	return msg.ID, nil
}

// Close shuts the gateway session down.
func (a *Adapter) Close() error {
	if a.session == nil {
		return nil
	}
	if err := a.session.Close(); err != nil {
		return fmt.Errorf("discord: close session: %w", err)
	}
	return nil
}
