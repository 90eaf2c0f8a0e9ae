package ops

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"m365/internal/graph"
	"m365/internal/invoke"
	"m365/internal/object"
)

func registerOutlook(reg *invoke.Registry, client *graph.Client) {
	reg.Register("search_emails", searchEmails(client))
	reg.Register("send_email", sendEmail(client))
	reg.Register("reply_emails", replyEmails(client))
	reg.Register("forward_emails", forwardEmails(client))
	reg.Register("save_emails", saveEmails(client))
	reg.Register("search_attachments", searchAttachments(client))
	reg.Register("save_attachments", saveAttachments(client))
}

func messageRecord(m graph.Message) object.Record {
	rec := object.Record{
		"id":              m.ID,
		"subject":         m.Subject,
		"preview":         m.BodyPreview,
		"received":        m.ReceivedDateTime,
		"has_attachments": m.HasAttachments,
		"web_link":        m.WebLink,
	}
	if m.From != nil {
		rec["from"] = object.Record{
			"name":    m.From.EmailAddress.Name,
			"address": m.From.EmailAddress.Address,
		}
	}
	if len(m.ToRecipients) > 0 {
		to := make([]any, 0, len(m.ToRecipients))
		for _, r := range m.ToRecipients {
			to = append(to, r.EmailAddress.Address)
		}
		rec["to"] = to
	}
	return rec
}

func recipients(addrs string) []graph.Recipient {
	var out []graph.Recipient
	for _, a := range strings.Split(addrs, ",") {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		out = append(out, graph.Recipient{EmailAddress: graph.EmailAddress{Address: a}})
	}
	return out
}

// searchEmails emits one record per matching message, in the API's ranking
// order.
func searchEmails(client *graph.Client) invoke.Capability {
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		fs := newFlags("search_emails")
		query := fs.String("query", "", "search query")
		top := fs.Int("top", 25, "page size")
		if err := parseFlags(fs, args); err != nil {
			return nil, err
		}
		if *query == "" {
			return nil, fmt.Errorf("search_emails: --query is required")
		}

		msgs, err := client.SearchMessages(ctx, *query, *top)
		if err != nil {
			return nil, err
		}
		out := make(object.List, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, messageRecord(m))
		}
		return out, nil
	}
}

// sendEmail sends one message and emits a single record describing it.
func sendEmail(client *graph.Client) invoke.Capability {
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		fs := newFlags("send_email")
		to := fs.String("to", "", "comma-separated recipients")
		subject := fs.String("subject", "", "subject line")
		body := fs.String("body", "", "message body")
		cc := fs.String("cc", "", "comma-separated CC recipients")
		attachments := fs.StringSlice("attachment", nil, "attachment file paths")
		if err := parseFlags(fs, args); err != nil {
			return nil, err
		}
		if *to == "" {
			return nil, fmt.Errorf("send_email: --to is required")
		}

		msg := graph.Message{
			Subject:      *subject,
			Body:         &graph.ItemBody{ContentType: "text", Content: *body},
			ToRecipients: recipients(*to),
			CcRecipients: recipients(*cc),
		}
		for _, path := range *attachments {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("send_email: read attachment: %w", err)
			}
			msg.Attachments = append(msg.Attachments, graph.FileAttachment{
				Name:         filepath.Base(path),
				ContentBytes: base64.StdEncoding.EncodeToString(data),
			})
		}

		if err := client.SendMail(ctx, msg); err != nil {
			return nil, err
		}
		return object.List{{
			"subject": *subject,
			"to":      anySlice(recipientAddrs(msg.ToRecipients)),
			"status":  "sent",
		}}, nil
	}
}

// replyEmails replies to every message in the input list.
func replyEmails(client *graph.Client) invoke.Capability {
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		fs := newFlags("reply_emails")
		body := fs.String("body", "", "reply body")
		if err := parseFlags(fs, args); err != nil {
			return nil, err
		}
		if *body == "" {
			return nil, fmt.Errorf("reply_emails: --body is required")
		}

		out := make(object.List, 0, len(input))
		for _, rec := range input {
			id, err := stringField(rec, "id")
			if err != nil {
				return nil, fmt.Errorf("reply_emails: %w", err)
			}
			if err := client.Reply(ctx, id, *body); err != nil {
				return nil, err
			}
			out = append(out, object.Record{"id": id, "status": "replied"})
		}
		return out, nil
	}
}

// forwardEmails forwards every message in the input list to the given
// recipients.
func forwardEmails(client *graph.Client) invoke.Capability {
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		fs := newFlags("forward_emails")
		to := fs.String("to", "", "comma-separated recipients")
		comment := fs.String("comment", "", "forwarding comment")
		if err := parseFlags(fs, args); err != nil {
			return nil, err
		}
		if *to == "" {
			return nil, fmt.Errorf("forward_emails: --to is required")
		}

		out := make(object.List, 0, len(input))
		for _, rec := range input {
			id, err := stringField(rec, "id")
			if err != nil {
				return nil, fmt.Errorf("forward_emails: %w", err)
			}
			if err := client.Forward(ctx, id, *comment, recipients(*to)); err != nil {
				return nil, err
			}
			out = append(out, object.Record{"id": id, "to": *to, "status": "forwarded"})
		}
		return out, nil
	}
}

// saveEmails writes each input message to disk as .eml and emits records
// carrying the saved paths.
func saveEmails(client *graph.Client) invoke.Capability {
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		fs := newFlags("save_emails")
		dst := fs.String("dst", ".", "destination directory")
		if err := parseFlags(fs, args); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(*dst, 0755); err != nil {
			return nil, fmt.Errorf("save_emails: %w", err)
		}

		out := make(object.List, 0, len(input))
		for _, rec := range input {
			id, err := stringField(rec, "id")
			if err != nil {
				return nil, fmt.Errorf("save_emails: %w", err)
			}
			mime, err := client.GetMessageMIME(ctx, id)
			if err != nil {
				return nil, err
			}
			path := filepath.Join(*dst, safeName(id)+".eml")
			if err := os.WriteFile(path, mime, 0644); err != nil {
				return nil, fmt.Errorf("save_emails: %w", err)
			}
			out = append(out, object.Record{"id": id, "path": path})
		}
		return out, nil
	}
}

// searchAttachments finds messages matching the query and emits one record
// per attachment, without fetching content; save_attachments does that.
func searchAttachments(client *graph.Client) invoke.Capability {
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		fs := newFlags("search_attachments")
		query := fs.String("query", "", "search query")
		top := fs.Int("top", 25, "page size")
		if err := parseFlags(fs, args); err != nil {
			return nil, err
		}
		if *query == "" {
			return nil, fmt.Errorf("search_attachments: --query is required")
		}

		msgs, err := client.SearchMessages(ctx, *query, *top)
		if err != nil {
			return nil, err
		}

		var out object.List
		for _, m := range msgs {
			if !m.HasAttachments {
				continue
			}
			atts, err := client.ListAttachments(ctx, m.ID)
			if err != nil {
				return nil, err
			}
			for _, att := range atts {
				out = append(out, object.Record{
					"id":           att.ID,
					"message_id":   m.ID,
					"name":         att.Name,
					"subject":      m.Subject,
					"content_type": att.ContentType,
					"size":         num(att.Size),
				})
			}
		}
		if out == nil {
			out = object.List{}
		}
		return out, nil
	}
}

// saveAttachments fetches each input attachment's content and writes it to
// disk; emitted records reference the bytes by path.
func saveAttachments(client *graph.Client) invoke.Capability {
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		fs := newFlags("save_attachments")
		dst := fs.String("dst", ".", "destination directory")
		if err := parseFlags(fs, args); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(*dst, 0755); err != nil {
			return nil, fmt.Errorf("save_attachments: %w", err)
		}

		used := make(map[string]bool)
		out := make(object.List, 0, len(input))
		for _, rec := range input {
			attID, err := stringField(rec, "id")
			if err != nil {
				return nil, fmt.Errorf("save_attachments: %w", err)
			}
			msgID, err := stringField(rec, "message_id")
			if err != nil {
				return nil, fmt.Errorf("save_attachments: %w", err)
			}

			att, err := client.GetAttachment(ctx, msgID, attID)
			if err != nil {
				return nil, err
			}
			data, err := base64.StdEncoding.DecodeString(att.ContentBytes)
			if err != nil {
				return nil, fmt.Errorf("save_attachments: decode %s: %w", att.Name, err)
			}

			path := filepath.Join(*dst, uniqueName(used, safeName(att.Name), attID))
			if err := os.WriteFile(path, data, 0644); err != nil {
				return nil, fmt.Errorf("save_attachments: %w", err)
			}
			out = append(out, object.Record{
				"id":      attID,
				"name":    att.Name,
				"path":    path,
				"size":    num(int64(len(data))),
				"content": object.BlobRef{Path: path},
			})
		}
		return out, nil
	}
}

func recipientAddrs(rs []graph.Recipient) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.EmailAddress.Address)
	}
	return out
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// safeName strips path separators so a hostile attachment name cannot
// escape the destination directory.
func safeName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "unnamed"
	}
	return strings.ReplaceAll(name, string(filepath.Separator), "_")
}
