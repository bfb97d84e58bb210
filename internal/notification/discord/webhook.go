package discord

import (
	"fmt"
	"time"

	"github.com/assist-by/fundbot/internal/notification"
)

const footer = "Assist by Funding Bot 🤖"

// SendError는 에러 알림을 전송합니다
func (c *Client) SendError(err error) error {
	embed := NewEmbed().
		SetTitle("에러 발생").
		SetDescription(fmt.Sprintf("```%v```", err)).
		SetColor(ColorError).
		SetFooter(footer).
		SetTimestamp(time.Now())

	return c.sendToWebhook(c.errorWebhook, WebhookMessage{Embeds: []Embed{*embed}})
}

// SendInfo는 일반 정보 알림을 전송합니다
func (c *Client) SendInfo(message string) error {
	embed := NewEmbed().
		SetDescription(message).
		SetColor(ColorInfo).
		SetFooter(footer).
		SetTimestamp(time.Now())

	return c.sendToWebhook(c.infoWebhook, WebhookMessage{Embeds: []Embed{*embed}})
}

// SendTradeInfo는 포지션 진입/청산 정보를 전송합니다
func (c *Client) SendTradeInfo(info notification.TradeInfo) error {
	title := fmt.Sprintf("포지션 진입: %s", info.Symbol)
	if info.Action == notification.ActionClose {
		title = fmt.Sprintf("포지션 청산: %s", info.Symbol)
	}

	embed := NewEmbed().
		SetTitle(title).
		SetDescription(fmt.Sprintf(
			"**전략**: %s\n**투자금**: $%.2f\n**레버리지**: %dx\n**마크 가격**: $%.4f",
			info.StrategyType, info.Investment, info.Leverage, info.MarkPrice,
		)).
		AddField("현물 수량", fmt.Sprintf("%.8f", info.SpotQuantity), true).
		AddField("선물 수량", fmt.Sprintf("%.8f", info.FuturesQuantity), true).
		AddField("펀딩비", fmt.Sprintf("%.4f%%", info.FundingRate*100), true).
		SetColor(notification.GetColorForAction(info.Action)).
		SetFooter(footer).
		SetTimestamp(time.Now())

	return c.sendToWebhook(c.tradeWebhook, WebhookMessage{Embeds: []Embed{*embed}})
}

// SendRebalance는 리밸런싱 점프 결과를 전송합니다
func (c *Client) SendRebalance(info notification.RebalanceInfo) error {
	color := ColorSuccess
	status := "완료"
	if !info.Success {
		color = ColorError
		status = "실패"
	}

	embed := NewEmbed().
		SetTitle(fmt.Sprintf("리밸런싱 %s: %s → %s", status, info.FromSymbol, info.ToSymbol)).
		SetDescription(fmt.Sprintf("**연 수익률**: %.2f%% → %.2f%%\n**사유**: %s",
			info.FromAnnualized*100, info.ToAnnualized*100, info.Reason)).
		SetColor(color).
		SetFooter(footer).
		SetTimestamp(time.Now())

	return c.sendToWebhook(c.tradeWebhook, WebhookMessage{Embeds: []Embed{*embed}})
}
