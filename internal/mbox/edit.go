package mbox

import (
	"fmt"

	"github.com/lenlo/mailcheck/internal/byteio"
)

// DeleteSet marks every message in s as deleted.
func (b *Mailbox) DeleteSet(s *Set) int {
	n := 0
	for _, m := range s.Messages(b) {
		if !m.Deleted {
			m.MarkDeleted()
			n++
		}
	}
	return n
}

// UndeleteSet clears the deleted flag on every message in s.
func (b *Mailbox) UndeleteSet(s *Set) int {
	n := 0
	for _, m := range s.Messages(b) {
		if m.Deleted {
			m.MarkUndeleted()
			n++
		}
	}
	return n
}

// Join merges every message in s into a single message, concatenating
// bodies in ascending order and keeping the first message's envelope and
// headers. The merged headers gain an X-IMAPbase-style note is left to
// the writer; Join only performs the structural merge per SPEC_FULL
// §4.8.
func (b *Mailbox) Join(s *Set) (*Message, error) {
	msgs := s.Messages(b)
	if len(msgs) < 2 {
		return nil, fmt.Errorf("mbox: join requires at least two messages")
	}
	first := msgs[0]
	var body []byte
	for _, m := range msgs {
		body = append(body, m.Body.Data()...)
	}
	first.Body = byteio.Own(body)
	first.MarkDirty()

	joined := make(map[*Message]bool, len(msgs))
	for _, m := range msgs[1:] {
		joined[m] = true
	}

	var newHead, newTail *Message
	for cur := b.head; cur != nil; {
		next := cur.next
		if !joined[cur] {
			cur.next = nil
			if newTail == nil {
				newHead = cur
			} else {
				newTail.next = cur
			}
			newTail = cur
		}
		cur = next
	}
	b.head, b.tail = newHead, newTail
	b.count -= len(joined)
	b.Renumber()
	b.markDirty()
	return first, nil
}

// Split breaks the message numbered n into two messages at byte offset
// cut within its body. The first keeps the original envelope and headers;
// the second reuses the original's envelope line and a copy of its
// headers. Neither message's Content-Length header is updated. Per
// SPEC_FULL §4.8 this is the structural inverse of Join; like Join, it
// renumbers the mailbox afterwards.
func (b *Mailbox) Split(n, cut int) (*Message, *Message, error) {
	orig := b.MessageByNumber(n)
	if orig == nil {
		return nil, nil, fmt.Errorf("mbox: no message numbered %d", n)
	}
	if cut <= 0 || cut >= orig.Body.Len() {
		return nil, nil, fmt.Errorf("mbox: split offset %d out of range for message %d (body length %d)", cut, n, orig.Body.Len())
	}

	data := orig.Body.Data()
	head := append([]byte(nil), data[:cut]...)
	tail := append([]byte(nil), data[cut:]...)

	orig.Body = byteio.Own(head)
	orig.MarkDirty()

	second := &Message{
		Tag:          b.nextTag,
		EnvelopeLine: orig.EnvelopeLine,
		Envelope:     orig.Envelope,
		Headers:      orig.Headers.Clone(),
		Body:         byteio.Own(tail),
		box:          b,
	}
	second.Headers.OnDirty(second.MarkDirty)
	b.nextTag++

	rest := orig.next
	orig.next = second
	second.next = rest
	if b.tail == orig {
		b.tail = second
	}
	b.count++
	b.Renumber()
	b.markDirty()
	return orig, second, nil
}
