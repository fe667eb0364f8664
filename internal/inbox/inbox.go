// Package inbox polls a Gmail inbox for OpenPhone export-ready
// notifications and extracts the archive download link.
package inbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// SenderEmail is the address OpenPhone sends export notifications from.
const SenderEmail = "op@openphone.com"

var exportLinkPattern = regexp.MustCompile(
	`https://opstatics\.s3\.us-west-2\.amazonaws\.com/exports/[^\s"<]+\.zip\?[^\s"<]+`,
)

// PollOptions controls the export-email wait loop.
type PollOptions struct {
	Sender   string        // defaults to SenderEmail
	Lookback time.Duration // how far back to search; default 50m
	Attempts int           // default 6
	Interval time.Duration // default 30s
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Sender == "" {
		o.Sender = SenderEmail
	}
	if o.Lookback <= 0 {
		o.Lookback = 50 * time.Minute
	}
	if o.Attempts <= 0 {
		o.Attempts = 6
	}
	if o.Interval <= 0 {
		o.Interval = 30 * time.Second
	}
	return o
}

// NewService builds a Gmail service from OAuth credentials and a stored
// token file.
func NewService(ctx context.Context, credentialsPath, tokenPath string) (*gmail.Service, error) {
	creds, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, eris.Wrapf(err, "inbox: read credentials %s", credentialsPath)
	}
	conf, err := google.ConfigFromJSON(creds, gmail.GmailModifyScope)
	if err != nil {
		return nil, eris.Wrap(err, "inbox: parse credentials")
	}

	token, err := LoadToken(tokenPath)
	if err != nil {
		return nil, err
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, token)))
	if err != nil {
		return nil, eris.Wrap(err, "inbox: create gmail service")
	}
	return svc, nil
}

// LoadToken reads a stored OAuth token from disk.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "inbox: open token %s", path)
	}
	defer f.Close() //nolint:errcheck

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, eris.Wrapf(err, "inbox: decode token %s", path)
	}
	return &token, nil
}

// WaitForExportLink polls the inbox until an export notification newer
// than the lookback window appears, then returns its download link.
func WaitForExportLink(ctx context.Context, svc *gmail.Service, opts PollOptions) (string, error) {
	opts = opts.withDefaults()
	since := time.Now().UTC().Add(-opts.Lookback)
	query := fmt.Sprintf("from:%s after:%d", opts.Sender, since.Unix())

	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		link, err := checkOnce(svc, query)
		if err != nil {
			zap.L().Warn("inbox check failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		} else if link != "" {
			return link, nil
		}

		if attempt < opts.Attempts {
			select {
			case <-ctx.Done():
				return "", eris.Wrap(ctx.Err(), "inbox: wait cancelled")
			case <-time.After(opts.Interval):
			}
		}
	}

	return "", eris.Errorf("inbox: no export email from %s after %d attempts", opts.Sender, opts.Attempts)
}

func checkOnce(svc *gmail.Service, query string) (string, error) {
	list, err := svc.Users.Messages.List("me").Q(query).MaxResults(1).Do()
	if err != nil {
		return "", eris.Wrap(err, "inbox: list messages")
	}
	if len(list.Messages) == 0 {
		return "", nil
	}

	msg, err := svc.Users.Messages.Get("me", list.Messages[0].Id).Format("full").Do()
	if err != nil {
		return "", eris.Wrapf(err, "inbox: get message %s", list.Messages[0].Id)
	}

	return ExtractExportLink(BodyText(msg)), nil
}

// BodyText concatenates the decoded text/plain and text/html parts of a
// message.
func BodyText(msg *gmail.Message) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}

	var body string
	var walk func(parts []*gmail.MessagePart)
	walk = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part == nil {
				continue
			}
			if (part.MimeType == "text/plain" || part.MimeType == "text/html") && part.Body != nil {
				decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(part.Body.Data)
				if err != nil {
					zap.L().Warn("skipping undecodable message part", zap.Error(err))
					continue
				}
				body += string(decoded)
			}
			walk(part.Parts)
		}
	}
	walk([]*gmail.MessagePart{msg.Payload})
	return body
}

// ExtractExportLink returns the first export archive link in the body,
// or an empty string.
func ExtractExportLink(body string) string {
	return exportLinkPattern.FindString(body)
}
