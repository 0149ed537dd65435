// Package regen asks a model to return exactly one updated section as a
// single data object {sectionName, updatedContent}, so the result can be
// spliced into a document without re-parsing the whole thing. Retries are
// modeled as an explicit state machine with escalating strictness.
package regen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hanno79/prdc/internal/client"
	"github.com/hanno79/prdc/internal/config"
	"github.com/hanno79/prdc/internal/document"
	"github.com/hanno79/prdc/internal/llm"
	"github.com/hanno79/prdc/internal/logger"
)

// Caller is the slice of the model client the regenerator needs. Satisfied
// by *client.Client; tests substitute stubs.
type Caller interface {
	CallWithFallback(ctx context.Context, role client.Role, req *llm.Request) (*client.Result, error)
}

// state of the retry machine.
type state int

const (
	stateAttempt1 state = iota
	stateAttempt2
	stateAttempt3
	stateSuccess
	stateExhausted
)

const maxAttempts = 3

// sectionUpdate is the wire shape the model must return.
type sectionUpdate struct {
	SectionName    string `json:"sectionName"`
	UpdatedContent string `json:"updatedContent"`
}

// Result is a successful regeneration with its diagnostics.
type Result struct {
	SectionKey     document.SectionKey
	UpdatedContent string
	Model          string
	Usage          llm.Usage
	// AttemptsUsed counts model calls made, 1..3.
	AttemptsUsed int
	// RepairApplied is true when the raw response needed repair before it
	// parsed.
	RepairApplied bool
}

// attemptFailure records why one attempt was rejected.
type attemptFailure struct {
	attempt int
	reason  string
}

// ExhaustedError is raised after all attempts failed. It embeds every
// attempt's reason.
type ExhaustedError struct {
	SectionKey document.SectionKey
	Failures   []attemptFailure
}

func (e *ExhaustedError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "section %s: all %d regeneration attempts failed:", e.SectionKey, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, "\n  attempt %d: %s", f.attempt, f.reason)
	}
	return sb.String()
}

const baseSystemPrompt = `You update one section of a product requirements document.
Return a single JSON object with exactly two string fields:
  "sectionName": the section being updated
  "updatedContent": the complete new section text
Do not return anything except that object.`

const strictNote = `

DATA ONLY: your previous response was not a parseable data object.
Return only the JSON object. No prose, no markdown fences, no commentary.`

const maximalNote = `

FINAL ATTEMPT: output must start with "{" and end with "}". Any other
character anywhere in the response is a failure. Both fields are mandatory.`

// Regenerate runs the retry state machine for one section. instructions is
// the caller's content directive (what to change and why); feedback may be
// empty.
func Regenerate(ctx context.Context, caller Caller, key document.SectionKey, currentContent, instructions string, th config.Thresholds) (*Result, error) {
	if !document.IsValidSectionKey(key) {
		return nil, fmt.Errorf("unknown section key %q", key)
	}

	userPrompt := buildUserPrompt(key, currentContent, instructions)

	var failures []attemptFailure
	var usage llm.Usage

	st := stateAttempt1
	for st != stateSuccess && st != stateExhausted {
		attempt := int(st) + 1
		req := &llm.Request{
			SystemPrompt: baseSystemPrompt,
			UserPrompt:   userPrompt,
			JSONOnly:     true,
		}
		switch st {
		case stateAttempt2:
			req.SystemPrompt += strictNote
		case stateAttempt3:
			req.SystemPrompt += strictNote + maximalNote
			// Lowered temperature makes the final attempt as deterministic
			// as the provider allows.
			req.Temperature = 0.1
		}

		res, err := caller.CallWithFallback(ctx, client.RoleGenerator, req)
		if err != nil {
			// A fallback-exhausted model call is not retryable by stricter
			// prompting; surface it directly.
			return nil, fmt.Errorf("regenerating section %s: %w", key, err)
		}
		usage.Add(res.Usage)

		cleaned, repaired := RepairResponse(res.Content)
		update, reason := parseUpdate(cleaned, key, th)
		if reason == "" {
			return &Result{
				SectionKey:     key,
				UpdatedContent: update.UpdatedContent,
				Model:          res.Model,
				Usage:          usage,
				AttemptsUsed:   attempt,
				RepairApplied:  repaired,
			}, nil
		}

		logger.Debug("regen: attempt %d for %s rejected: %s", attempt, key, reason)
		failures = append(failures, attemptFailure{attempt: attempt, reason: reason})
		switch st {
		case stateAttempt1:
			st = stateAttempt2
		case stateAttempt2:
			st = stateAttempt3
		default:
			st = stateExhausted
		}
	}

	return nil, &ExhaustedError{SectionKey: key, Failures: failures}
}

func buildUserPrompt(key document.SectionKey, currentContent, instructions string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Section to update: %s (%s)\n\n", key, document.CanonicalHeading(key))
	if strings.TrimSpace(currentContent) != "" {
		fmt.Fprintf(&sb, "<current>\n%s\n</current>\n\n", strings.TrimSpace(currentContent))
	}
	fmt.Fprintf(&sb, "Instructions:\n%s\n", strings.TrimSpace(instructions))
	return sb.String()
}

// parseUpdate validates the cleaned response. An empty reason means success.
func parseUpdate(cleaned string, key document.SectionKey, th config.Thresholds) (*sectionUpdate, string) {
	var update sectionUpdate
	if err := json.Unmarshal([]byte(cleaned), &update); err != nil {
		return nil, fmt.Sprintf("response is not a valid data object: %v", err)
	}
	if update.SectionName == "" {
		return nil, "sectionName field is missing"
	}
	if !sectionNameMatches(update.SectionName, key) {
		return nil, fmt.Sprintf("sectionName %q does not name section %s", update.SectionName, key)
	}
	if len(strings.TrimSpace(update.UpdatedContent)) < th.RegenMinContentLen {
		return nil, fmt.Sprintf("updatedContent implausibly short (%d chars, minimum %d)",
			len(strings.TrimSpace(update.UpdatedContent)), th.RegenMinContentLen)
	}
	return &update, ""
}

// sectionNameMatches accepts the canonical key, the canonical heading, or
// any heading synonym for the requested section.
func sectionNameMatches(name string, key document.SectionKey) bool {
	if document.SectionKey(name) == key {
		return true
	}
	if matched, ok := document.MatchSectionHeading(name); ok && matched == key {
		return true
	}
	return false
}
