// Package dedup implements the duplicate detector of SPEC_FULL §4.8:
// sort by Message-ID, compare adjacent pairs across a fixed field list
// and the body, and resolve interactively.
package dedup

import (
	"bytes"
	"sort"
	"strings"

	"github.com/lenlo/mailcheck/internal/mbox"
)

// Decision is the outcome of resolving one candidate duplicate pair.
type Decision int

const (
	// DecisionKeepFirst deletes B, keeping A.
	DecisionKeepFirst Decision = iota
	// DecisionKeepSecond deletes A, keeping B.
	DecisionKeepSecond
	// DecisionKeepBoth leaves both messages alone.
	DecisionKeepBoth
	// DecisionShowDiff asks the detector to re-invoke the prompt with a
	// rendered diff of the differing fields (handled by the caller;
	// Resolve itself just loops back to Prompt).
	DecisionShowDiff
	// DecisionQuit aborts the remaining resolution pass.
	DecisionQuit
)

// Pair is a candidate duplicate: two messages sharing a Message-Id whose
// other fields and body were compared.
type Pair struct {
	A, B            *mbox.Message
	DifferingFields []string
}

// comparedHeaders lists the fixed set of headers SPEC_FULL §4.8 compares
// between candidate duplicates, beyond Resent-* and X-* which are
// compared by prefix match below.
var comparedHeaders = []string{"From", "To", "Cc", "Bcc", "Subject", "Date"}

// FindCandidates sorts box's messages by Message-Id and returns every
// adjacent pair sharing a non-empty id, along with which of the
// compared fields (and/or the body) differ between them.
func FindCandidates(box *mbox.Mailbox) []Pair {
	var msgs []*mbox.Message
	for m := box.Head(); m != nil; m = m.Next() {
		if !m.Deleted && messageID(m) != "" {
			msgs = append(msgs, m)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return messageID(msgs[i]) < messageID(msgs[j])
	})

	var pairs []Pair
	for i := 0; i+1 < len(msgs); i++ {
		a, b := msgs[i], msgs[i+1]
		if messageID(a) != messageID(b) {
			continue
		}
		pairs = append(pairs, Pair{A: a, B: b, DifferingFields: diffFields(a, b)})
	}
	return pairs
}

func messageID(m *mbox.Message) string {
	if m.CachedMessageID != "" {
		return m.CachedMessageID
	}
	return m.Headers.ValueOf("Message-Id")
}

func diffFields(a, b *mbox.Message) []string {
	var diffs []string
	for _, key := range comparedHeaders {
		if a.Headers.ValueOf(key) != b.Headers.ValueOf(key) {
			diffs = append(diffs, key)
		}
	}
	diffs = append(diffs, diffPrefixedHeaders(a, b, "Resent-")...)
	diffs = append(diffs, diffPrefixedHeaders(a, b, "X-")...)
	if !bytes.Equal(a.Body.Data(), b.Body.Data()) {
		diffs = append(diffs, "body")
	}
	return diffs
}

func diffPrefixedHeaders(a, b *mbox.Message, prefix string) []string {
	seen := make(map[string]bool)
	var keys []string
	collect := func(m *mbox.Message) {
		for _, h := range m.Headers.All() {
			if strings.HasPrefix(strings.ToUpper(h.Key), strings.ToUpper(prefix)) && !seen[h.Key] {
				seen[h.Key] = true
				keys = append(keys, h.Key)
			}
		}
	}
	collect(a)
	collect(b)
	var diffs []string
	for _, k := range keys {
		if a.Headers.ValueOf(k) != b.Headers.ValueOf(k) {
			diffs = append(diffs, k)
		}
	}
	return diffs
}

// PromptFunc is invoked once per candidate pair, and again after a
// DecisionShowDiff response, until it returns anything else.
type PromptFunc func(p Pair) Decision

// Resolve walks candidates, invoking prompt for each until a final
// decision (not DecisionShowDiff) is reached, applying
// DecisionKeepFirst/DecisionKeepSecond as a deletion on the loser.
// Resolution stops immediately on DecisionQuit.
func Resolve(candidates []Pair, prompt PromptFunc) {
	for _, p := range candidates {
		if len(p.DifferingFields) == 0 {
			p.B.MarkDeleted()
			continue
		}
		for {
			d := prompt(p)
			switch d {
			case DecisionKeepFirst:
				p.B.MarkDeleted()
			case DecisionKeepSecond:
				p.A.MarkDeleted()
			case DecisionKeepBoth:
			case DecisionShowDiff:
				continue
			case DecisionQuit:
				return
			}
			break
		}
	}
}
