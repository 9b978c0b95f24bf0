package ingest

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"parchment-hq/parchment/pkg/archive"
)

// ParseMessage turns a raw RFC 5322 message into an archive input. The
// owner is the first To recipient (falling back to Delivered-To); the
// raw bytes are preserved verbatim as the record content, attachments
// are extracted from multipart bodies for deduplicated side storage.
func ParseMessage(raw []byte, sourceID, mailboxPath string) (*archive.ArchiveInput, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, archive.NewValidationError(fmt.Sprintf("malformed message: %v", err))
	}

	input := &archive.ArchiveInput{
		SourceID:    sourceID,
		MailboxPath: mailboxPath,
		Subject:     decodeHeader(msg.Header.Get("Subject")),
		Content:     raw,
	}

	if addr, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		input.SenderEmail = strings.ToLower(addr.Address)
	}

	input.OwnerEmail = firstAddress(msg.Header.Get("To"))
	if input.OwnerEmail == "" {
		input.OwnerEmail = firstAddress(msg.Header.Get("Delivered-To"))
	}
	if input.OwnerEmail == "" {
		return nil, archive.NewValidationError("message has no recipient to attribute ownership")
	}

	if sentAt, err := msg.Header.Date(); err == nil {
		input.SentAt = sentAt.UTC()
	} else {
		input.SentAt = time.Now().UTC()
	}

	atts, err := extractAttachments(msg.Header.Get("Content-Type"), msg.Body)
	if err != nil {
		// A body that cannot be walked is archived without attachment
		// extraction; the raw bytes are intact either way.
		return input, nil
	}
	input.Attachments = atts
	return input, nil
}

func firstAddress(header string) string {
	if header == "" {
		return ""
	}
	addrs, err := mail.ParseAddressList(header)
	if err != nil || len(addrs) == 0 {
		return ""
	}
	return strings.ToLower(addrs[0].Address)
}

func decodeHeader(s string) string {
	dec := new(mime.WordDecoder)
	out, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}

// extractAttachments walks a multipart body, recursing into nested
// multiparts, and returns every part carrying an attachment disposition
// or filename.
func extractAttachments(contentType string, body io.Reader) ([]archive.AttachmentInput, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil, nil
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, nil
	}

	var atts []archive.AttachmentInput
	mr := multipart.NewReader(body, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return atts, err
		}

		partType := part.Header.Get("Content-Type")
		if mt, _, err := mime.ParseMediaType(partType); err == nil && strings.HasPrefix(mt, "multipart/") {
			nested, err := extractAttachments(partType, part)
			if err != nil {
				return atts, err
			}
			atts = append(atts, nested...)
			continue
		}

		filename := partFilename(part)
		if filename == "" {
			continue
		}

		content, err := decodePart(part)
		if err != nil {
			return atts, err
		}

		mimeType := "application/octet-stream"
		if mt, _, err := mime.ParseMediaType(partType); err == nil {
			mimeType = mt
		}
		atts = append(atts, archive.AttachmentInput{
			Filename: filename,
			MimeType: mimeType,
			Content:  content,
		})
	}
	return atts, nil
}

func partFilename(part *multipart.Part) string {
	disposition, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err == nil {
		if name := params["filename"]; name != "" {
			return decodeHeader(name)
		}
		if disposition != "attachment" {
			return ""
		}
	}
	if name := part.FileName(); name != "" {
		return decodeHeader(name)
	}
	return ""
}

func decodePart(part *multipart.Part) ([]byte, error) {
	var r io.Reader = part
	switch strings.ToLower(part.Header.Get("Content-Transfer-Encoding")) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, part)
	case "quoted-printable":
		r = quotedprintable.NewReader(part)
	}
	return io.ReadAll(r)
}
