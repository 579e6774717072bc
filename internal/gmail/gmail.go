// Package gmail is the mailbox gateway for crosslist.
//
// It wraps google.golang.org/api/gmail/v1 with the handful of operations the
// reconciliation engine needs: search, fetch, label and send.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/daviddao/crosslist/internal/types"
	"golang.org/x/time/rate"
	gm "google.golang.org/api/gmail/v1"
)

const (
	me = "me"

	// DefaultMaxResults bounds a single search, like Gmail's own page size.
	DefaultMaxResults = 100
)

// Client talks to one Gmail mailbox.
type Client struct {
	svc        *gm.Service
	limiter    *rate.Limiter
	maxResults int64
}

// New returns a Client for the authenticated user of svc.
// Requests are paced to stay well under the per-user Gmail quota.
func New(svc *gm.Service) *Client {
	return &Client{
		svc:        svc,
		limiter:    rate.NewLimiter(rate.Limit(20), 10),
		maxResults: DefaultMaxResults,
	}
}

// Search returns the IDs of messages matching a Gmail query.
func (c *Client) Search(ctx context.Context, query string) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Users.Messages.List(me).
		Q(query).
		MaxResults(c.maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// Get fetches a full message and decodes its body.
func (c *Client) Get(ctx context.Context, messageID string) (*types.Mail, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	msg, err := c.svc.Users.Messages.Get(me, messageID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}

	mail := &types.Mail{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Labels:   msg.LabelIds,
	}
	if msg.Payload != nil {
		mail.Headers = headerMap(msg.Payload.Headers)
		mail.Body = extractBody(msg.Payload)
	}
	return mail, nil
}

// ListLabels returns every label in the mailbox.
func (c *Client) ListLabels(ctx context.Context) ([]types.Label, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Users.Labels.List(me).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}

	labels := make([]types.Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labels = append(labels, types.Label{ID: l.Id, Name: l.Name})
	}
	return labels, nil
}

// CreateLabel creates a user label.
func (c *Client) CreateLabel(ctx context.Context, name string) (types.Label, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return types.Label{}, err
	}
	l, err := c.svc.Users.Labels.Create(me, &gm.Label{Name: name}).Context(ctx).Do()
	if err != nil {
		return types.Label{}, fmt.Errorf("create label %q: %w", name, err)
	}
	return types.Label{ID: l.Id, Name: l.Name}, nil
}

// AddLabels adds labels to a message.
func (c *Client) AddLabels(ctx context.Context, messageID string, labelIDs []string) error {
	return c.modify(ctx, messageID, &gm.ModifyMessageRequest{AddLabelIds: labelIDs})
}

// RemoveLabels removes labels from a message.
func (c *Client) RemoveLabels(ctx context.Context, messageID string, labelIDs []string) error {
	return c.modify(ctx, messageID, &gm.ModifyMessageRequest{RemoveLabelIds: labelIDs})
}

func (c *Client) modify(ctx context.Context, messageID string, req *gm.ModifyMessageRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.svc.Users.Messages.Modify(me, messageID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("modify message %s: %w", messageID, err)
	}
	return nil
}

// Send sends an HTML mail from the authenticated user.
func (c *Client) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	raw := base64.URLEncoding.EncodeToString(buildMessage(to, subject, htmlBody))
	if _, err := c.svc.Users.Messages.Send(me, &gm.Message{Raw: raw}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("send message to %s: %w", to, err)
	}
	return nil
}

// buildMessage renders an RFC 5322 message with a base64 HTML body.
func buildMessage(to, subject, htmlBody string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.BEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	enc := base64.StdEncoding.EncodeToString([]byte(htmlBody))
	for len(enc) > 76 {
		b.WriteString(enc[:76] + "\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc + "\r\n")
	return b.Bytes()
}

// extractBody returns the text body of a message payload. Plain text parts
// win over HTML; HTML is reduced to its text so item IDs split across tags
// still match.
func extractBody(payload *gm.MessagePart) string {
	if text := findPart(payload, "text/plain"); text != "" {
		return text
	}
	if html := findPart(payload, "text/html"); html != "" {
		return htmlToText(html)
	}
	return ""
}

// findPart returns the first decodable body of the given MIME type, walking
// nested multiparts depth first. A single-part message whose type is not set
// counts as text/plain.
func findPart(part *gm.MessagePart, mimeType string) string {
	if part.Body != nil && part.Body.Data != "" {
		partType := part.MimeType
		if partType == "" {
			partType = "text/plain"
		}
		if partType == mimeType {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return decoded
			}
		}
	}
	for _, child := range part.Parts {
		if body := findPart(child, mimeType); body != "" {
			return body
		}
	}
	return ""
}

func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	return doc.Text()
}

// headerMap converts Gmail API headers into a simple key-value map.
func headerMap(headers []*gm.MessagePartHeader) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Name] = h.Value
	}
	return m
}

// decodeBase64URL decodes Gmail's base64url content, padded or not.
func decodeBase64URL(data string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
