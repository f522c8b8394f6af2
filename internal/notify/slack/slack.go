// Package slack is the Slack Socket Mode notification adapter.
package slack

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/casabot/innkeeper/internal/notify"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// Opts configures the Slack adapter.
type Opts struct {
	AppToken string
	BotToken string
	Channel  string
}

// Adapter connects to Slack over Socket Mode. Structural thread replies are
// resolved to the original text from a local record of what we sent, so the
// reply listener never needs an extra API round trip.
type Adapter struct {
	opts Opts

	api    *slack.Client
	socket *socketmode.Client

	mu       sync.Mutex
	sentText map[string]string // message timestamp -> text we sent
}

// New validates opts and returns an unconnected adapter.
func New(opts Opts) (*Adapter, error) {
	if opts.AppToken == "" || opts.BotToken == "" {
		return nil, fmt.Errorf("slack: app and bot tokens are required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	return &Adapter{opts: opts, sentText: map[string]string{}}, nil
}

// Connect builds the API and socket clients and verifies the bot token.
func (a *Adapter) Connect(ctx context.Context) error {
	a.api = slack.New(a.opts.BotToken, slack.OptionAppLevelToken(a.opts.AppToken))
	if _, err := a.api.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	a.socket = socketmode.New(a.api)
	return nil
}

// Listen starts the socket pump and returns the translated inbound stream.
func (a *Adapter) Listen(ctx context.Context) (<-chan notify.Inbound, error) {
	if a.socket == nil {
		return nil, fmt.Errorf("slack: not connected")
	}
	out := make(chan notify.Inbound, 16)

	go func() {
		if err := a.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			log.Printf("slack: socket stopped: %v", err)
		}
	}()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-a.socket.Events:
				if !ok {
					return
				}
				if in, ok := a.translate(evt); ok {
					out <- in
				}
			}
		}
	}()
	return out, nil
}

// translate maps one socket event to an Inbound, acking as required.
func (a *Adapter) translate(evt socketmode.Event) (notify.Inbound, bool) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return notify.Inbound{}, false
		}
		a.socket.Ack(*evt.Request)
		ev, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
		if !ok {
			return notify.Inbound{}, false
		}
		// Only human messages in our channel.
		if ev.Channel != a.opts.Channel || ev.BotID != "" || ev.Text == "" {
			return notify.Inbound{}, false
		}
		in := notify.Inbound{Text: ev.Text}
		if ev.ThreadTimeStamp != "" {
			a.mu.Lock()
			in.ReplyToText = a.sentText[ev.ThreadTimeStamp]
			a.mu.Unlock()
		}
		return in, true

	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			return notify.Inbound{}, false
		}
		a.socket.Ack(*evt.Request)
		if len(callback.ActionCallback.BlockActions) == 0 {
			return notify.Inbound{}, false
		}
		action := callback.ActionCallback.BlockActions[0]
		kind, ok := actionKind(action.ActionID)
		if !ok {
			return notify.Inbound{}, false
		}
		return notify.Inbound{
			Action: &notify.Action{Kind: kind, Context: callback.Message.Text},
		}, true
	}
	return notify.Inbound{}, false
}

func actionKind(actionID string) (string, bool) {
	switch actionID {
	case notify.ActionApprove:
		return notify.ActionApprove, true
	case notify.ActionReject:
		return notify.ActionReject, true
	}
	return "", false
}

// Send posts to the host channel, attaching approve/reject buttons when
// requested. The returned reference is the Slack message timestamp.
func (a *Adapter) Send(ctx context.Context, out notify.Outbound) (string, error) {
	if a.api == nil {
		return "", fmt.Errorf("slack: not connected")
	}
	options := []slack.MsgOption{slack.MsgOptionText(out.Text, false)}
	if out.WithActions {
		section := slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, out.Text, false, false), nil, nil)
		buttons := slack.NewActionBlock("curation",
			slack.NewButtonBlockElement(notify.ActionApprove, notify.ActionApprove,
				slack.NewTextBlockObject(slack.PlainTextType, "Guardar", false, false)),
			slack.NewButtonBlockElement(notify.ActionReject, notify.ActionReject,
				slack.NewTextBlockObject(slack.PlainTextType, "Descartar", false, false)))
		options = append(options, slack.MsgOptionBlocks(section, buttons))
	}
	_, timestamp, err := a.api.PostMessageContext(ctx, a.opts.Channel, options...)
	if err != nil {
		return "", fmt.Errorf("slack: post message: %w", err)
	}
	a.mu.Lock()
	a.sentText[timestamp] = out.Text
	a.mu.Unlock()
	return timestamp, nil
}

// Close is a no-op; the socket stops when its context is cancelled.
func (a *Adapter) Close() error { return nil }
