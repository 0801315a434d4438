// Package check implements the Checker/Repairer of SPEC_FULL §4.6: six
// ordered rules run over every message in a Mailbox, each capable of
// operating in report-only or repair mode, with optional interactive
// per-occurrence confirmation.
package check

import (
	"crypto/md5"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lenlo/mailcheck/internal/boundary"
	"github.com/lenlo/mailcheck/internal/byteio"
	"github.com/lenlo/mailcheck/internal/diag"
	"github.com/lenlo/mailcheck/internal/mbox"
)

// Mode selects whether the Checker only reports problems or also repairs
// them.
type Mode int

const (
	ModeReport Mode = iota
	ModeRepair
)

// Decision is the outcome of an interactive per-occurrence prompt.
type Decision int

const (
	DecisionApply Decision = iota
	DecisionSkip
	DecisionApplyAll
	DecisionSkipAll
	DecisionQuit
)

// Rule names an individual checker rule, in the order SPEC_FULL §4.6
// requires they run.
type Rule int

const (
	RuleContentLength Rule = iota
	RuleMessageID
	RuleStrayFromHeader
	RuleFromPresence
	RuleDatePresence
	RuleIllegalBytes
)

func (r Rule) String() string {
	switch r {
	case RuleContentLength:
		return "content-length"
	case RuleMessageID:
		return "message-id"
	case RuleStrayFromHeader:
		return "stray-from-header"
	case RuleFromPresence:
		return "from-presence"
	case RuleDatePresence:
		return "date-presence"
	case RuleIllegalBytes:
		return "illegal-bytes"
	}
	return "unknown"
}

// PromptFunc is called once per occurrence when Options.Interactive is
// set, letting the caller drive a confirmation dialog (the Bubble Tea
// choiceModel, in cmd/mailcheck).
type PromptFunc func(rule Rule, msg *mbox.Message, detail string) Decision

// Options controls a Checker run.
type Options struct {
	Mode        Mode
	Strict      bool
	Interactive bool
	Prompt      PromptFunc
}

// Checker runs the ordered rule set over a Mailbox.
type Checker struct {
	box    *mbox.Mailbox
	logger *diag.Logger
	opts   Options

	autoApply map[Rule]bool
	autoSkip  map[Rule]bool
	quit      bool
}

// NewChecker returns a Checker for box.
func NewChecker(box *mbox.Mailbox, logger *diag.Logger, opts Options) *Checker {
	return &Checker{
		box:       box,
		logger:    logger,
		opts:      opts,
		autoApply: make(map[Rule]bool),
		autoSkip:  make(map[Rule]bool),
	}
}

// Run executes the rule set over every message in the mailbox, in
// order. Non-strict mode, per SPEC_FULL §4.6, enforces only the
// Content-Length/Dovecot-bug check; strict mode promotes the remaining
// five rules (Message-ID synthesis, stray ">From " deletion, From/Date
// presence, illegal-byte stripping) to reportable warnings as well. It
// stops early if an interactive prompt returns DecisionQuit.
func (c *Checker) Run() {
	rules := []func(*mbox.Message){c.checkContentLength}
	if c.opts.Strict {
		rules = append(rules,
			c.checkMessageID,
			c.checkStrayFromHeader,
			c.checkFromPresence,
			c.checkDatePresence,
			c.checkIllegalBytes,
		)
	}
	for _, rule := range rules {
		for m := c.box.Head(); m != nil; m = m.Next() {
			if c.quit {
				return
			}
			rule(m)
		}
	}
}

// decide resolves whether a repair should be applied for this
// occurrence, consulting the interactive prompt (and its sticky
// apply-all/skip-all state) when configured.
func (c *Checker) decide(rule Rule, m *mbox.Message, detail string) bool {
	if c.opts.Mode != ModeRepair {
		return false
	}
	if !c.opts.Interactive || c.opts.Prompt == nil {
		return true
	}
	if c.autoApply[rule] {
		return true
	}
	if c.autoSkip[rule] {
		return false
	}
	switch c.opts.Prompt(rule, m, detail) {
	case DecisionApply:
		return true
	case DecisionApplyAll:
		c.autoApply[rule] = true
		return true
	case DecisionSkip:
		return false
	case DecisionSkipAll:
		c.autoSkip[rule] = true
		return false
	case DecisionQuit:
		c.quit = true
		return false
	}
	return false
}

func (c *Checker) report(sev diag.Severity, kind diag.Kind, m *mbox.Message, format string, args ...any) {
	context := fmt.Sprintf("message %d", m.Number)
	c.logger.Report(diag.New(sev, kind, context, format, args...))
}

// checkContentLength verifies the Content-Length header matches the
// actual body length, accounting for the Dovecot From-space bug when
// the message's DovecotBugMask is non-zero. A missing header is only
// flagged in strict mode; a present-but-mismatched one is always
// flagged, per SPEC_FULL §4.6 rule 1.
func (c *Checker) checkContentLength(m *mbox.Message) {
	cl := m.Headers.FindFirst("Content-Length")
	if cl == nil {
		if !c.opts.Strict {
			return
		}
		detail := "missing Content-Length header"
		c.report(diag.Warning, diag.IntegrityError, m, "%s", detail)
		if c.decide(RuleContentLength, m, detail) {
			m.Headers.Set("Content-Length", strconv.Itoa(m.Body.Len()))
		}
		return
	}
	declared, err := strconv.Atoi(strings.TrimSpace(cl.Value))
	if err != nil {
		c.report(diag.Warning, diag.ParseError, m, "Content-Length value %q is not an integer", cl.Value)
		return
	}
	actual := m.Body.Len()
	if declared == actual {
		return
	}

	if m.DovecotBugMask != 0 {
		detail := fmt.Sprintf("Content-Length declares %d, body is %d bytes (Dovecot From-space bug, mask=%#x)",
			declared, actual, m.DovecotBugMask)
		c.report(diag.Warning, diag.IntegrityError, m, "%s", detail)
		if c.decide(RuleContentLength, m, detail) {
			if repaired, ok := boundary.RepairDovecotBug(m.Body.Data(), declared); ok {
				m.Body = byteio.Own(repaired)
				cl.SetValue(strconv.Itoa(m.Body.Len()))
				m.DovecotBugMask = 0
			}
		}
		return
	}

	detail := fmt.Sprintf("Content-Length declares %d, body is %d bytes", declared, actual)
	c.report(diag.Warning, diag.IntegrityError, m, "%s", detail)
	if c.decide(RuleContentLength, m, detail) {
		cl.SetValue(strconv.Itoa(actual))
	}
}

// checkMessageID synthesizes a Message-Id when one is missing, hashing
// Cc/Date/From/Sender/Subject/To plus the body in that fixed order so
// repeated runs over an unmodified message reproduce the same id.
func (c *Checker) checkMessageID(m *mbox.Message) {
	if id := m.Headers.FindFirst("Message-Id"); id != nil && strings.TrimSpace(id.Value) != "" {
		return
	}
	detail := "missing or empty Message-Id"
	c.report(diag.Warning, diag.IntegrityError, m, "%s", detail)
	if c.decide(RuleMessageID, m, detail) {
		id := ""
		if xid := m.Headers.FindFirst("X-Message-ID"); xid != nil && strings.TrimSpace(xid.Value) != "" {
			id = xid.Value
		} else {
			id = synthesizeMessageID(m)
		}
		m.Headers.Set("Message-Id", id)
		m.CachedMessageID = id
	}
}

func synthesizeMessageID(m *mbox.Message) string {
	h := md5.New()
	for _, key := range []string{"Cc", "Date", "From", "Sender", "Subject", "To"} {
		h.Write([]byte(m.Headers.ValueOf(key)))
	}
	h.Write(m.Body.Data())
	return fmt.Sprintf("<%x@synthesized-by-mfck>", h.Sum(nil))
}

// checkStrayFromHeader deletes a spurious ">From " pseudo-header — a
// mboxrd-stuffed line that the header parser accepted as a header
// because it appeared before the blank line separating headers from
// body.
func (c *Checker) checkStrayFromHeader(m *mbox.Message) {
	if m.Headers.FindFirst(">From ") == nil {
		return
	}
	detail := "stray \">From \" pseudo-header in header block"
	c.report(diag.Warning, diag.ParseError, m, "%s", detail)
	if c.decide(RuleStrayFromHeader, m, detail) {
		m.Headers.Delete(">From ")
	}
}

// checkFromPresence ensures a From header exists, preferring X-From, then
// Sender, then Return-Path, and only falling back to the envelope sender
// as a last resort.
func (c *Checker) checkFromPresence(m *mbox.Message) {
	if m.Headers.FindFirst("From") != nil {
		return
	}
	detail := "missing From header"
	c.report(diag.Warning, diag.IntegrityError, m, "%s", detail)
	if c.decide(RuleFromPresence, m, detail) {
		from := m.Envelope.Sender
		if h := m.Headers.FindFirst("Return-Path"); h != nil {
			from = h.Value
		}
		if h := m.Headers.FindFirst("Sender"); h != nil {
			from = h.Value
		}
		if h := m.Headers.FindFirst("X-From"); h != nil {
			from = h.Value
		}
		m.Headers.Set("From", from)
	}
}

// checkDatePresence ensures a Date header exists, preferring X-Date, then
// the suffix of the last Received: header after its final ";", and only
// falling back to the envelope's parsed ctime date rendered as RFC 5322.
func (c *Checker) checkDatePresence(m *mbox.Message) {
	if m.Headers.FindFirst("Date") != nil {
		return
	}
	detail := "missing Date header"
	c.report(diag.Warning, diag.IntegrityError, m, "%s", detail)
	if c.decide(RuleDatePresence, m, detail) {
		when := m.Envelope.Date.Format(time.RFC1123Z)
		if received := lastReceivedDate(m); received != "" {
			when = received
		}
		if h := m.Headers.FindFirst("X-Date"); h != nil {
			when = h.Value
		}
		m.Headers.Set("Date", when)
	}
}

// lastReceivedDate returns the portion of the last Received: header after
// its final ";", trimmed, which by RFC 5321 convention holds the
// timestamp the relay stamped the message with.
func lastReceivedDate(m *mbox.Message) string {
	last := m.Headers.FindLast("Received")
	if last == nil {
		return ""
	}
	idx := strings.LastIndex(last.Value, ";")
	if idx == -1 {
		return ""
	}
	return strings.TrimSpace(last.Value[idx+1:])
}

// checkIllegalBytes flags (and, in repair mode, strips) control bytes
// embedded in header values.
func (c *Checker) checkIllegalBytes(m *mbox.Message) {
	for _, h := range m.Headers.All() {
		if !hasIllegalByte(h.Value) {
			continue
		}
		detail := fmt.Sprintf("header %q contains an illegal control byte", h.Key)
		c.report(diag.Warning, diag.ParseError, m, "%s", detail)
		if c.decide(RuleIllegalBytes, m, detail) {
			h.SetValue(stripIllegalBytes(h.Value))
		}
	}
}

func isLegalControlByte(b byte) bool {
	return b == '\t' || b == '\r' || b == '\n'
}

func hasIllegalByte(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if (b < 0x20 && !isLegalControlByte(b)) || b == 0x7f || b > 0x7e {
			return true
		}
	}
	return false
}

func stripIllegalBytes(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 0x20 && !isLegalControlByte(c)) || c == 0x7f || c > 0x7e {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
