// Package notify announces auction outcomes to a Discord channel. The
// announcer is fire-and-forget: a failed send is logged, never propagated,
// so the auction path stays independent of Discord availability.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/config"
)

// Announcer posts auction outcome messages to a configured channel.
type Announcer struct {
	session   *discordgo.Session
	channelID string
	logger    *slog.Logger
}

// New creates an Announcer and opens the Discord session.
func New(cfg config.NotifyConfig, logger *slog.Logger) (*Announcer, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	// Announce-only: no gateway intents beyond the defaults are needed.
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("opening discord session: %w", err)
	}
	return &Announcer{
		session:   session,
		channelID: cfg.ChannelID,
		logger:    logger,
	}, nil
}

// Close shuts down the Discord session.
func (a *Announcer) Close() error {
	return a.session.Close()
}

func (a *Announcer) send(ctx context.Context, msg string) {
	go func() {
		if _, err := a.session.ChannelMessageSend(a.channelID, msg); err != nil {
			a.logger.ErrorContext(ctx, "sending discord announcement",
				slog.String("channel_id", a.channelID),
				slog.Any("error", err),
			)
		}
	}()
}

// PlayerSold announces a completed sale.
func (a *Announcer) PlayerSold(ctx context.Context, playerName, teamName string, price int64) {
	a.send(ctx, fmt.Sprintf("**SOLD!** %s goes to %s for %s", playerName, teamName, formatAmount(price)))
}

// PlayerUnsold announces a player who attracted no bids.
func (a *Announcer) PlayerUnsold(ctx context.Context, playerName string) {
	a.send(ctx, fmt.Sprintf("**UNSOLD.** %s attracted no bids", playerName))
}

// RoundCompleted announces the end of a round.
func (a *Announcer) RoundCompleted(ctx context.Context, roundName string) {
	a.send(ctx, fmt.Sprintf("Round **%s** is complete", roundName))
}

// formatAmount renders an amount in lakh/crore, the denominations cricket
// auctions are quoted in.
func formatAmount(amount int64) string {
	const (
		lakh  = 100_000
		crore = 100 * lakh
	)
	switch {
	case amount >= crore:
		return fmt.Sprintf("%.2f crore", float64(amount)/float64(crore))
	case amount >= lakh:
		return fmt.Sprintf("%.2f lakh", float64(amount)/float64(lakh))
	default:
		return fmt.Sprintf("%d", amount)
	}
}
