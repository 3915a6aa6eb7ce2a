// Package bot wires the Telegram transport to the registration pipeline.
package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client adapts the Telegram Bot API to the registration.Messenger
// contract. The underlying API is synchronous and carries its own timeout,
// so the context is only checked up front.
type Client struct {
	api *tgbotapi.BotAPI
}

// NewClient wraps an authorized bot API handle.
func NewClient(api *tgbotapi.BotAPI) *Client {
	return &Client{api: api}
}

// SendText delivers a plain text message to a chat.
func (c *Client) SendText(ctx context.Context, channelID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Send(tgbotapi.NewMessage(channelID, text)); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

// SendImage delivers a photo with a caption and returns the message id of
// the sent photo, so replies to it can be routed back to the exact task.
func (c *Client) SendImage(ctx context.Context, channelID int64, image []byte, caption string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	photo := tgbotapi.NewPhoto(channelID, tgbotapi.FileBytes{Name: "captcha.png", Bytes: image})
	photo.Caption = caption
	sent, err := c.api.Send(photo)
	if err != nil {
		return 0, fmt.Errorf("send image: %w", err)
	}
	return sent.MessageID, nil
}
