package discord

import (
	"fmt"
	"time"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/notification"
)

// maxOpportunityFields는 한 임베드에 표시할 최대 기회 수입니다
const maxOpportunityFields = 10

// SendOpportunities는 점수 상위 기회 목록을 Discord로 전송합니다
func (c *Client) SendOpportunities(opps []domain.Opportunity) error {
	embed := NewEmbed().
		SetTitle(fmt.Sprintf("📊 펀딩비 차익 기회 %d건", len(opps))).
		SetColor(notification.ColorInfo).
		SetFooter(footer).
		SetTimestamp(time.Now())

	if len(opps) == 0 {
		embed.SetDescription("조건을 만족하는 기회가 없습니다")
	}

	for i, o := range opps {
		if i >= maxOpportunityFields {
			break
		}
		embed.AddField(
			fmt.Sprintf("%s %s %s", ratingEmoji(o.Rating), o.Symbol, o.Rating),
			fmt.Sprintf("펀딩비 %.4f%% | 연 %.1f%%\n점수 %.2f | %s",
				o.FundingRate*100, o.AnnualizedRate*100, o.Score, o.Direction),
			false,
		)
	}

	return c.sendToWebhook(c.opportunityWebhook, WebhookMessage{Embeds: []Embed{*embed}})
}

func ratingEmoji(r domain.Rating) string {
	switch r {
	case domain.RatingExtreme:
		return "🔥"
	case domain.RatingHigh:
		return "🚀"
	default:
		return "✅"
	}
}
