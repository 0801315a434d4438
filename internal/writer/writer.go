// Package writer implements the atomic mailbox writer of SPEC_FULL §4.7,
// grounded on the teacher's temp-file-plus-rename write in
// cmd/gomap/main.go's appendToMbox. Bodies are written mboxo-style, with
// no ">"-quoting of body lines, per SPEC_FULL §6.
package writer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lenlo/mailcheck/internal/mbox"
)

// Options controls how a mailbox is serialized back to disk.
type Options struct {
	// Backup, if true, preserves the previous contents at path+"~"
	// before the atomic replace.
	Backup bool
	// SanitizeIMAP strips/migrates X-IMAP and X-IMAPbase pseudo-headers
	// per SPEC_FULL §4.7 when writing a full mailbox (rather than a
	// single appended message).
	SanitizeIMAP bool
}

// Write serializes every non-deleted message in box back to box.Path,
// via a temp file in the same directory followed by an atomic rename so
// a crash mid-write never leaves a truncated mailbox.
func Write(box *mbox.Mailbox, opts Options) error {
	dir := filepath.Dir(box.Path)
	tmp, err := os.CreateTemp(dir, ".mailcheck-*.tmp")
	if err != nil {
		return fmt.Errorf("writer: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed into place

	bw := bufio.NewWriter(tmp)
	imapBaseWritten := false
	imapBase := ""
	if opts.SanitizeIMAP {
		// The IMAP UID-validity anchor must survive even when the message
		// that originally carried it (conventionally msg#1) is deleted, so
		// find it across the whole mailbox before deciding who writes it.
		for m := box.Head(); m != nil; m = m.Next() {
			if h := m.Headers.FindFirst("X-IMAPbase"); h != nil {
				imapBase = h.Value
				break
			}
		}
	}
	for m := box.Head(); m != nil; m = m.Next() {
		if m.Deleted {
			continue
		}
		if opts.SanitizeIMAP {
			sanitizeIMAPHeaders(m, imapBase, &imapBaseWritten)
		}
		if err := writeMessage(bw, m); err != nil {
			tmp.Close()
			return fmt.Errorf("writer: write message %d: %w", m.Number, err)
		}
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("writer: flush: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("writer: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writer: close temp file: %w", err)
	}

	if opts.Backup {
		if err := copyFile(box.Path, box.Path+"~"); err != nil {
			return fmt.Errorf("writer: backup: %w", err)
		}
	}

	if err := os.Rename(tmpPath, box.Path); err != nil {
		return fmt.Errorf("writer: rename into place: %w", err)
	}
	return nil
}

func writeMessage(w *bufio.Writer, m *mbox.Message) error {
	if _, err := w.Write(m.EnvelopeLine); err != nil {
		return err
	}
	for _, h := range m.Headers.All() {
		if h.OriginalLine != nil {
			if _, err := w.Write(h.OriginalLine); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", h.Key, h.Value); err != nil {
			return err
		}
	}
	if _, err := w.WriteString("\n"); err != nil {
		return err
	}
	body := m.Body.Data()
	if _, err := w.Write(body); err != nil {
		return err
	}
	if len(body) == 0 || body[len(body)-1] != '\n' {
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := out.ReadFrom(in); err != nil {
		return err
	}
	return out.Sync()
}

// sanitizeIMAPHeaders strips per-message X-IMAP headers and keeps only a
// single X-IMAPbase header across the whole mailbox, migrating it onto
// the first surviving message even if the message that originally held
// it (conventionally msg#1) was deleted, per SPEC_FULL §4.7's testable
// scenario S6.
func sanitizeIMAPHeaders(m *mbox.Message, imapBase string, imapBaseWritten *bool) {
	m.Headers.Delete("X-IMAP")
	m.Headers.Delete("X-IMAPbase")
	if imapBase != "" && !*imapBaseWritten {
		m.Headers.Set("X-IMAPbase", imapBase)
		*imapBaseWritten = true
	}
}
