package export

import "strings"

// Container entry paths are built from user-controlled strings (folder
// names, attachment filenames), so every segment is sanitized before it
// goes into the zip: non-ASCII bytes are dropped, characters that are
// unsafe on common filesystems become '-', runs of '-' collapse, and the
// result is capped at 80 characters. Empty results fall back to a
// per-role placeholder so paths never contain empty segments.

const maxSegmentLen = 80

func sanitizeSegment(s, fallback string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevDash := false
	for _, r := range s {
		if r > 126 || r < 32 {
			continue
		}
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|':
			r = '-'
		}
		if r == '-' {
			if prevDash {
				continue
			}
			prevDash = true
		} else {
			prevDash = false
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "-. ")
	if len(out) > maxSegmentLen {
		out = strings.Trim(out[:maxSegmentLen], "-. ")
	}
	if out == "" {
		return fallback
	}
	return out
}

func sanitizeSource(s string) string   { return sanitizeSegment(s, "source") }
func sanitizeFilename(s string) string { return sanitizeSegment(s, "file") }

// sanitizeMailboxPath sanitizes each '/'-separated folder segment
// independently, preserving the hierarchy. An empty path yields "folder".
func sanitizeMailboxPath(path string) string {
	if path == "" {
		return "folder"
	}
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, sanitizeSegment(p, "folder"))
	}
	if len(out) == 0 {
		return "folder"
	}
	return strings.Join(out, "/")
}
