package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"tradesignal/internal/models"
)

type Slack struct {
	Client  *slack.Client
	Channel string
}

func NewSlack(token, channelID string, opts ...slack.Option) *Slack {
	return &Slack{Client: slack.New(token, opts...), Channel: channelID}
}

func (s *Slack) Notify(ctx context.Context, rec *models.SignalRecord) error {
	color := "#999999"
	switch rec.Signal {
	case "BUY":
		color = "good"
	case "SELL":
		color = "danger"
	}
	predicted := rec.PredictedPrice.StringFixed(2)
	if rec.PredictionFallback {
		predicted += " (fallback)"
	}
	attachment := slack.Attachment{
		Color: color,
		Title: fmt.Sprintf("%s %s", rec.Symbol, rec.Signal),
		Text:  rec.Reason,
		Fields: []slack.AttachmentField{
			{Title: "Close", Value: rec.CurrentPrice.StringFixed(2), Short: true},
			{Title: "Predicted", Value: predicted, Short: true},
			{Title: "Candle", Value: rec.Timestamp.UTC().Format("2006-01-02 15:04 MST"), Short: true},
		},
	}
	_, _, err := s.Client.PostMessageContext(ctx, s.Channel,
		slack.MsgOptionText(fmt.Sprintf(":chart_with_upwards_trend: %s signal for %s", rec.Signal, rec.Symbol), false),
		slack.MsgOptionAttachments(attachment),
	)
	if err != nil {
		return fmt.Errorf("slack post %s: %w", s.Channel, err)
	}
	return nil
}
