package mailbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Query selects candidate messages.
type Query struct {
	Senders    []string
	After      time.Time
	Before     time.Time
	OnlyUnread bool
	MaxResults int64
}

// String renders the provider search expression, for example
// from:(a OR b) is:unread after:2025/11/26 before:2025/11/28.
func (q Query) String() string {
	var parts []string
	if len(q.Senders) == 1 {
		parts = append(parts, "from:"+q.Senders[0])
	} else if len(q.Senders) > 1 {
		parts = append(parts, "from:("+strings.Join(q.Senders, " OR ")+")")
	}
	if q.OnlyUnread {
		parts = append(parts, "is:unread")
	}
	if !q.After.IsZero() {
		parts = append(parts, "after:"+q.After.Format("2006/01/02"))
	}
	if !q.Before.IsZero() {
		parts = append(parts, "before:"+q.Before.Format("2006/01/02"))
	}
	return strings.Join(parts, " ")
}

func (q Query) Labels() []string {
	if q.OnlyUnread {
		return []string{"INBOX", "UNREAD"}
	}
	return []string{"INBOX"}
}

// Message is the part of a mailbox message the adapter reads.
type Message struct {
	ID      string
	Subject string
	From    string
	HTML    string
}

type MessageSource interface {
	ListMessageIDs(ctx context.Context, q Query) ([]string, error)
	GetMessage(ctx context.Context, id string) (*Message, error)
}

// SourceFunc builds a MessageSource authorised by tok.
type SourceFunc func(ctx context.Context, tok *oauth2.Token) (MessageSource, error)

// GmailSource reads messages through the Gmail API.
type GmailSource struct {
	svc     *gmail.Service
	account string
}

func NewGmailSource(ctx context.Context, tok *oauth2.Token, account string, opts ...option.ClientOption) (*GmailSource, error) {
	opts = append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(tok))}, opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return &GmailSource{svc: svc, account: account}, nil
}

// GmailSourceFunc adapts NewGmailSource to SourceFunc.
func GmailSourceFunc(account string, opts ...option.ClientOption) SourceFunc {
	return func(ctx context.Context, tok *oauth2.Token) (MessageSource, error) {
		return NewGmailSource(ctx, tok, account, opts...)
	}
}

func (g *GmailSource) ListMessageIDs(ctx context.Context, q Query) ([]string, error) {
	call := g.svc.Users.Messages.List(g.account).LabelIds(q.Labels()...).Context(ctx)
	if q.MaxResults > 0 {
		call = call.MaxResults(q.MaxResults)
	}
	if s := q.String(); s != "" {
		call = call.Q(s)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

func (g *GmailSource) GetMessage(ctx context.Context, id string) (*Message, error) {
	msg, err := g.svc.Users.Messages.Get(g.account, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	out := &Message{ID: msg.Id}
	if msg.Payload == nil {
		return out, nil
	}
	out.Subject = header(msg.Payload, "Subject")
	out.From = header(msg.Payload, "From")

	html, err := HTMLBody(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode message %s: %w", id, err)
	}
	out.HTML = html
	return out, nil
}

// HTMLBody returns the first text/html part found depth-first, decoded from
// base64url and converted to UTF-8.
func HTMLBody(part *gmail.MessagePart) (string, error) {
	if part == nil {
		return "", nil
	}
	if strings.HasPrefix(strings.ToLower(part.MimeType), "text/html") && part.Body != nil && part.Body.Data != "" {
		return decodePart(part)
	}
	for _, child := range part.Parts {
		html, err := HTMLBody(child)
		if err != nil {
			return "", err
		}
		if html != "" {
			return html, nil
		}
	}
	return "", nil
}

func decodePart(part *gmail.MessagePart) (string, error) {
	raw, err := DecodeBase64URL(part.Body.Data)
	if err != nil {
		return "", err
	}

	contentType := header(part, "Content-Type")
	if contentType == "" {
		contentType = part.MimeType
	}
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw), nil
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// DecodeBase64URL accepts base64url data with or without padding.
func DecodeBase64URL(data string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}

func header(part *gmail.MessagePart, name string) string {
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
