package ingest

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"parchment-hq/parchment/pkg/archive"
)

const simpleMessage = "From: Bob Sender <BOB@Example.com>\r\n" +
	"To: Alice Owner <alice@example.com>, carol@example.com\r\n" +
	"Subject: Quarterly Budget\r\n" +
	"Date: Mon, 15 Jun 2026 10:30:00 +0200\r\n" +
	"\r\n" +
	"Please find the numbers attached.\r\n"

func TestParseMessage_Simple(t *testing.T) {
	input, err := ParseMessage([]byte(simpleMessage), "imap-primary", "Inbox")
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}

	if input.SenderEmail != "bob@example.com" {
		t.Errorf("sender = %q, want lower-cased address", input.SenderEmail)
	}
	if input.OwnerEmail != "alice@example.com" {
		t.Errorf("owner should be the first To recipient, got %q", input.OwnerEmail)
	}
	if input.Subject != "Quarterly Budget" {
		t.Errorf("subject = %q", input.Subject)
	}
	if input.SourceID != "imap-primary" || input.MailboxPath != "Inbox" {
		t.Errorf("source/mailbox not carried through: %q/%q", input.SourceID, input.MailboxPath)
	}
	if got := input.SentAt.UTC().Format("2006-01-02 15:04"); got != "2026-06-15 08:30" {
		t.Errorf("sentAt = %s, want normalized to UTC", got)
	}
	if !bytes.Equal(input.Content, []byte(simpleMessage)) {
		t.Error("raw content must be preserved verbatim")
	}
	if len(input.Attachments) != 0 {
		t.Errorf("plain message should have no attachments, got %d", len(input.Attachments))
	}
}

func TestParseMessage_DeliveredToFallback(t *testing.T) {
	msg := "From: bob@example.com\r\n" +
		"Delivered-To: dave@example.com\r\n" +
		"Subject: no to header\r\n" +
		"\r\n" +
		"body\r\n"

	input, err := ParseMessage([]byte(msg), "src", "")
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if input.OwnerEmail != "dave@example.com" {
		t.Errorf("owner = %q, want Delivered-To fallback", input.OwnerEmail)
	}
}

func TestParseMessage_NoRecipient(t *testing.T) {
	msg := "From: bob@example.com\r\nSubject: orphan\r\n\r\nbody\r\n"

	_, err := ParseMessage([]byte(msg), "src", "")
	if _, ok := err.(*archive.ValidationError); !ok {
		t.Errorf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestParseMessage_Malformed(t *testing.T) {
	_, err := ParseMessage([]byte("this is not an email"), "src", "")
	if _, ok := err.(*archive.ValidationError); !ok {
		t.Errorf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestParseMessage_EncodedSubject(t *testing.T) {
	msg := "From: bob@example.com\r\n" +
		"To: alice@example.com\r\n" +
		"Subject: =?UTF-8?Q?Budget_r=C3=A9sum=C3=A9?=\r\n" +
		"\r\n" +
		"body\r\n"

	input, err := ParseMessage([]byte(msg), "src", "")
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if input.Subject != "Budget résumé" {
		t.Errorf("subject = %q, want decoded", input.Subject)
	}
}

func multipartMessage(t *testing.T) []byte {
	t.Helper()

	payload := base64.StdEncoding.EncodeToString([]byte("fake pdf bytes"))
	var b strings.Builder
	b.WriteString("From: bob@example.com\r\n")
	b.WriteString("To: alice@example.com\r\n")
	b.WriteString("Subject: with attachment\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=outer\r\n")
	b.WriteString("\r\n")
	b.WriteString("--outer\r\n")
	b.WriteString("Content-Type: text/plain\r\n")
	b.WriteString("\r\n")
	b.WriteString("See attachment.\r\n")
	b.WriteString("--outer\r\n")
	b.WriteString("Content-Type: application/pdf\r\n")
	b.WriteString("Content-Disposition: attachment; filename=\"report.pdf\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")
	b.WriteString(payload + "\r\n")
	b.WriteString("--outer--\r\n")
	return []byte(b.String())
}

func TestParseMessage_Attachment(t *testing.T) {
	input, err := ParseMessage(multipartMessage(t), "src", "")
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}

	if len(input.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(input.Attachments))
	}
	att := input.Attachments[0]
	if att.Filename != "report.pdf" || att.MimeType != "application/pdf" {
		t.Errorf("attachment metadata wrong: %q %q", att.Filename, att.MimeType)
	}
	if string(att.Content) != "fake pdf bytes" {
		t.Errorf("attachment content not decoded: %q", att.Content)
	}
}

func TestParseMessage_NestedMultipart(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("inner bytes"))
	msg := "From: bob@example.com\r\n" +
		"To: alice@example.com\r\n" +
		"Subject: nested\r\n" +
		"Content-Type: multipart/mixed; boundary=outer\r\n" +
		"\r\n" +
		"--outer\r\n" +
		"Content-Type: multipart/alternative; boundary=inner\r\n" +
		"\r\n" +
		"--inner\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"hello\r\n" +
		"--inner\r\n" +
		"Content-Type: image/png\r\n" +
		"Content-Disposition: attachment; filename=\"chart.png\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		payload + "\r\n" +
		"--inner--\r\n" +
		"--outer--\r\n"

	input, err := ParseMessage([]byte(msg), "src", "")
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if len(input.Attachments) != 1 || input.Attachments[0].Filename != "chart.png" {
		t.Fatalf("nested attachment not found: %+v", input.Attachments)
	}
	if string(input.Attachments[0].Content) != "inner bytes" {
		t.Errorf("nested attachment content wrong: %q", input.Attachments[0].Content)
	}
}
