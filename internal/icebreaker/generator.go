// Package icebreaker generates opening lines for fresh connections.
package icebreaker

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/synastry-app/synastry-api/internal/model"
)

const systemPrompt = `You write a single playful opening line for two people who just matched on an astrology dating app. Use their sun/moon/ascendant signs when available. One sentence, no emoji, no preamble. Respond with the line only.`

// fallbackOpener is used when generation fails or is disabled. Connections
// always get some opener.
const fallbackOpener = "The stars put you two in the same orbit — say hello."

// Generator produces icebreaker lines via Claude, with a static fallback.
type Generator struct {
	client sdk.Client
	model  string
}

// New creates a generator. model may be empty to use the default Haiku model.
func New(apiKey, modelID string) *Generator {
	if modelID == "" {
		modelID = "claude-haiku-4-5-20251001"
	}
	return &Generator{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  modelID,
	}
}

// Fallback returns the static opener.
func Fallback() string {
	return fallbackOpener
}

// Generate asks Claude for one opening line for the pair.
func (g *Generator) Generate(ctx context.Context, userA, userB model.User) (string, error) {
	prompt := fmt.Sprintf("Person 1: %s\nPerson 2: %s\nWrite the opener.",
		describe(userA), describe(userB))

	resp, err := g.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(g.model),
		MaxTokens: 100,
		System: []sdk.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "icebreaker: messages.new")
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			if line := strings.TrimSpace(block.Text); line != "" {
				return line, nil
			}
		}
	}
	return "", eris.New("icebreaker: empty response")
}

func describe(u model.User) string {
	parts := []string{u.DisplayName}
	if u.SunSign != "" {
		parts = append(parts, "sun "+u.SunSign)
	}
	if u.MoonSign != "" {
		parts = append(parts, "moon "+u.MoonSign)
	}
	if u.AscendantSign != "" {
		parts = append(parts, "ascendant "+u.AscendantSign)
	}
	return strings.Join(parts, ", ")
}
