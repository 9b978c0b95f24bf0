package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"parchment-hq/parchment/pkg/archive"
)

// metadata is the container's metadata.json, written as the first entry.
type metadata struct {
	JobID      string     `json:"jobId"`
	JobType    string     `json:"jobType"` // "targeted" or "snapshot"
	Format     string     `json:"format"`
	CaseID     string     `json:"caseId,omitempty"`
	SnapshotAt *time.Time `json:"snapshotAt,omitempty"`
	CreatedBy  string     `json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  time.Time  `json:"startedAt"`
}

// manifestEntry is one line of manifest.jsonl.
type manifestEntry struct {
	ID              string    `json:"id"`
	SourceID        string    `json:"sourceId"`
	OwnerEmail      string    `json:"ownerEmail"`
	SenderEmail     string    `json:"senderEmail"`
	Subject         string    `json:"subject"`
	SentAt          time.Time `json:"sentAt"`
	ArchivedAt      time.Time `json:"archivedAt"`
	ContentHash     string    `json:"contentHash"`
	Path            string    `json:"path"`
	AttachmentPaths []string  `json:"attachmentPaths,omitempty"`
}

// summary is the container's summary.json, always the last entry.
type summary struct {
	EmailCount      int64     `json:"emailCount"`
	AttachmentCount int64     `json:"attachmentCount"`
	Format          string    `json:"format"`
	CompletedAt     time.Time `json:"completedAt"`
}

// attachmentRef points a json-format record entry at an attachment's bytes
// elsewhere in the container.
type attachmentRef struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
	Path      string `json:"path"`
}

// jsonEntry is one element of the json format's export.json array.
type jsonEntry struct {
	manifestEntry
	Content     string          `json:"content"`
	Attachments []attachmentRef `json:"attachments,omitempty"`
}

const (
	metadataName = "metadata.json"
	manifestName = "manifest.jsonl"
	jsonName     = "export.json"
	summaryName  = "summary.json"
	mboxName     = "export.mbox"
)

// containerWriter assembles one export container. Zip entries are strictly
// sequential, so the manifest and the json payload are buffered while
// records stream through and flushed by Finish. Entry order is
// metadata.json, payload, manifest.jsonl, export.json (json format only),
// summary.json.
type containerWriter struct {
	zw     *zip.Writer
	format archive.ExportFormat

	manifest    bytes.Buffer
	jsonEntries []*jsonEntry
	mbox        io.Writer // lazily created single mbox entry

	// seen maps attachment id to its container path so shared attachments
	// are written once but referenced from every record that links them.
	seen map[string]string

	emailCount      int64
	attachmentCount int64
}

func newContainerWriter(w io.Writer, format archive.ExportFormat, meta *metadata) (*containerWriter, error) {
	cw := &containerWriter{
		zw:     zip.NewWriter(w),
		format: format,
		seen:   make(map[string]string),
	}
	if err := cw.writeJSON(metadataName, meta); err != nil {
		return nil, err
	}
	return cw, nil
}

func (cw *containerWriter) writeJSON(name string, v any) error {
	f, err := cw.zw.Create(name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emlPath places a record's raw message under its source and mailbox
// folder hierarchy.
func emlPath(rec *archive.ArchivedRecord) string {
	return fmt.Sprintf("eml/%s/%s/%s.eml",
		sanitizeSource(rec.SourceID), sanitizeMailboxPath(rec.MailboxPath), rec.ID)
}

// mboxFrom builds the mbox separator line for a record.
func mboxFrom(rec *archive.ArchivedRecord) string {
	sender := rec.SenderEmail
	if sender == "" {
		sender = "unknown"
	}
	return fmt.Sprintf("From %s %s\n", sender, rec.SentAt.UTC().Format(time.ANSIC))
}

// WriteRecord emits one record's content in the container's format and
// returns the payload path recorded in the manifest.
func (cw *containerWriter) WriteRecord(rec *archive.ArchivedRecord, content io.Reader) (string, error) {
	cw.emailCount++

	switch cw.format {
	case archive.FormatEML:
		path := emlPath(rec)
		f, err := cw.zw.Create(path)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(f, content); err != nil {
			return "", err
		}
		return path, nil

	case archive.FormatMbox:
		if cw.mbox == nil {
			f, err := cw.zw.Create(mboxName)
			if err != nil {
				return "", err
			}
			cw.mbox = f
		}
		if _, err := io.WriteString(cw.mbox, mboxFrom(rec)); err != nil {
			return "", err
		}
		if _, err := io.Copy(cw.mbox, content); err != nil {
			return "", err
		}
		if _, err := io.WriteString(cw.mbox, "\n\n"); err != nil {
			return "", err
		}
		return mboxName, nil

	case archive.FormatJSON:
		data, err := io.ReadAll(content)
		if err != nil {
			return "", err
		}
		cw.jsonEntries = append(cw.jsonEntries, &jsonEntry{Content: string(data)})
		return jsonName, nil

	default:
		return "", fmt.Errorf("unsupported export format %q", cw.format)
	}
}

// WriteAttachment stores an attachment's bytes once per container and
// returns its path. Repeat calls for the same attachment id reuse the
// already-written entry without invoking open.
func (cw *containerWriter) WriteAttachment(att *archive.Attachment, open func() (io.ReadCloser, error)) (string, error) {
	if path, ok := cw.seen[att.ID]; ok {
		return path, nil
	}

	path := fmt.Sprintf("attachments/%s/%s", att.ID, sanitizeFilename(att.Filename))
	f, err := cw.zw.Create(path)
	if err != nil {
		return "", err
	}
	r, err := open()
	if err != nil {
		return "", err
	}
	_, err = io.Copy(f, r)
	r.Close()
	if err != nil {
		return "", err
	}

	cw.seen[att.ID] = path
	cw.attachmentCount++
	return path, nil
}

// AddManifestEntry buffers one manifest line. For the json format the
// entry is also folded into the last record's export.json element.
func (cw *containerWriter) AddManifestEntry(entry *manifestEntry, atts []attachmentRef) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	cw.manifest.Write(line)
	cw.manifest.WriteByte('\n')

	if cw.format == archive.FormatJSON && len(cw.jsonEntries) > 0 {
		last := cw.jsonEntries[len(cw.jsonEntries)-1]
		last.manifestEntry = *entry
		last.Attachments = atts
	}
	return nil
}

// Finish flushes the buffered manifest and payload, writes summary.json
// as the final entry, and closes the zip stream. It returns the email and
// attachment counts recorded in the summary.
func (cw *containerWriter) Finish(completedAt time.Time) (int64, int64, error) {
	f, err := cw.zw.Create(manifestName)
	if err != nil {
		return 0, 0, err
	}
	if _, err := f.Write(cw.manifest.Bytes()); err != nil {
		return 0, 0, err
	}

	if cw.format == archive.FormatJSON {
		if err := cw.writeJSON(jsonName, cw.jsonEntries); err != nil {
			return 0, 0, err
		}
	}

	err = cw.writeJSON(summaryName, &summary{
		EmailCount:      cw.emailCount,
		AttachmentCount: cw.attachmentCount,
		Format:          string(cw.format),
		CompletedAt:     completedAt.UTC(),
	})
	if err != nil {
		return 0, 0, err
	}
	if err := cw.zw.Close(); err != nil {
		return 0, 0, err
	}
	return cw.emailCount, cw.attachmentCount, nil
}
