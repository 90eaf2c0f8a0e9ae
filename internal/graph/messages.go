package graph

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// maxPages caps nextLink-following so a huge mailbox cannot wedge a stage.
const maxPages = 50

// sendMailRQ is the sendMail request envelope.
type sendMailRQ struct {
	Message         Message `json:"message"`
	SaveToSentItems bool    `json:"saveToSentItems"`
}

// SearchMessages runs a $search query over the mailbox and returns matching
// messages in the API's ranking order, following pagination links.
func (c *Client) SearchMessages(ctx context.Context, query string, top int) ([]Message, error) {
	if top <= 0 {
		top = 25
	}
	params := url.Values{}
	params.Set("$search", strconv.Quote(query))
	params.Set("$top", strconv.Itoa(top))
	u := c.url("messages") + "?" + params.Encode()

	return collectPages[Message](ctx, c, u, "search messages")
}

// collectPages fetches a collection endpoint and follows @odata.nextLink.
func collectPages[T any](ctx context.Context, c *Client, u, operation string) ([]T, error) {
	var all []T
	for i := 0; u != "" && i < maxPages; i++ {
		var pg page[T]
		if err := c.doJSON(ctx, "GET", u, operation, nil, &pg); err != nil {
			return nil, err
		}
		all = append(all, pg.Value...)
		u = pg.NextLink
	}
	return all, nil
}

// SendMail sends a message. The Graph API returns 202 with no body; the
// caller only learns success or failure.
func (c *Client) SendMail(ctx context.Context, msg Message) error {
	for i := range msg.Attachments {
		msg.Attachments[i].ODataType = fileAttachmentType
	}
	rq := sendMailRQ{Message: msg, SaveToSentItems: true}
	return c.doJSON(ctx, "POST", c.url("sendMail"), "send mail", rq, nil)
}

// Reply posts a reply to the message with the given comment body.
func (c *Client) Reply(ctx context.Context, messageID, comment string) error {
	rq := map[string]string{"comment": comment}
	u := c.url("messages", url.PathEscape(messageID), "reply")
	return c.doJSON(ctx, "POST", u, "reply message", rq, nil)
}

// Forward forwards the message to the given recipients.
func (c *Client) Forward(ctx context.Context, messageID, comment string, to []Recipient) error {
	rq := map[string]any{"comment": comment, "toRecipients": to}
	u := c.url("messages", url.PathEscape(messageID), "forward")
	return c.doJSON(ctx, "POST", u, "forward message", rq, nil)
}

// GetMessageMIME fetches the full RFC 822 content of a message, for saving
// it to disk as .eml.
func (c *Client) GetMessageMIME(ctx context.Context, messageID string) ([]byte, error) {
	u := c.url("messages", url.PathEscape(messageID), "$value")
	return c.doRaw(ctx, "GET", u, "get message mime", nil)
}

// GetAttachment fetches one attachment of a message, content bytes included.
func (c *Client) GetAttachment(ctx context.Context, messageID, attachmentID string) (*FileAttachment, error) {
	u := c.url("messages", url.PathEscape(messageID), "attachments", url.PathEscape(attachmentID))
	var att FileAttachment
	if err := c.doJSON(ctx, "GET", u, "get attachment", nil, &att); err != nil {
		return nil, err
	}
	return &att, nil
}

// ListAttachments returns the file attachments of a message, content bytes
// included.
func (c *Client) ListAttachments(ctx context.Context, messageID string) ([]FileAttachment, error) {
	u := c.url("messages", url.PathEscape(messageID), "attachments")
	atts, err := collectPages[FileAttachment](ctx, c, u, fmt.Sprintf("list attachments of %s", messageID))
	if err != nil {
		return nil, err
	}
	return atts, nil
}
