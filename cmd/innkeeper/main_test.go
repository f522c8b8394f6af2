package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/casabot/innkeeper/internal/config"
)

func TestVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(buf.String(), "innkeeper") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"watch", "worker", "db", "status", "login", "dashboard", "version"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestCreateAdapter(t *testing.T) {
	if _, err := createAdapter(config.NotifierConfig{Platform: "telegram"}); err == nil {
		t.Error("unsupported platform: expected error")
	}
	slackCfg := config.NotifierConfig{
		Platform: "slack",
		Channel:  "C123",
		Slack:    config.SlackConfig{AppToken: "xapp-1", BotToken: "xoxb-1"},
	}
	if _, err := createAdapter(slackCfg); err != nil {
		t.Errorf("slack adapter: %v", err)
	}
	discordCfg := config.NotifierConfig{
		Platform: "discord",
		Channel:  "987",
		Discord:  config.DiscordConfig{BotToken: "tok"},
	}
	if _, err := createAdapter(discordCfg); err != nil {
		t.Errorf("discord adapter: %v", err)
	}
}

func TestDBReset_RequiresConfirmation(t *testing.T) {
	cmd := newDBResetCmd(new(string))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Errorf("reset without --yes: err = %v", err)
	}
}
