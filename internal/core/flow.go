// ABOUTME: Question-flow controller expressed as ordinary rules
// ABOUTME: Ask rules make one question pending; the prompt rule suspends for its answer
package core

import (
	"fmt"

	"github.com/harper/dermacheck/internal/engine"
	"github.com/harper/dermacheck/internal/models"
)

// Prompt rule identity. It outranks every ask and diagnosis rule.
const (
	PromptRuleName = "ask_question"
	PromptSalience = 200
)

// QuestionState is where a question ident stands in a session
type QuestionState int

const (
	QuestionUnasked QuestionState = iota
	QuestionPending
	QuestionAnswered
)

func (s QuestionState) String() string {
	switch s {
	case QuestionUnasked:
		return "unasked"
	case QuestionPending:
		return "pending"
	case QuestionAnswered:
		return "answered"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// PromptRule suspends the engine while a pending question has no answer
func PromptRule() engine.Rule {
	return engine.Rule{
		Name:     PromptRuleName,
		Salience: PromptSalience,
		When: []engine.Element{
			engine.Match(models.KindNextQuestion, engine.Bind("ident", "ident")),
			engine.Not(models.KindAnswer, engine.Bind("ident", "ident")),
		},
		Then: func(ctx *engine.Context) error {
			ctx.Suspend(ctx.Bindings().String("ident"), "awaiting answer")
			return nil
		},
	}
}

// AskRule makes ident pending when its prerequisites hold. It never fires for
// an answered ident or while any other question is pending.
func AskRule(name string, salience int, ident string, when ...engine.Element) (engine.Rule, error) {
	if ident == "" {
		return engine.Rule{}, fmt.Errorf("ask rule %s has no question ident", name)
	}
	conds := append(append([]engine.Element(nil), when...),
		engine.Not(models.KindAnswer, engine.Eq("ident", ident)),
		engine.Not(models.KindNextQuestion),
	)

	return engine.Rule{
		Name:     name,
		Salience: salience,
		When:     conds,
		Refs:     []engine.Ref{{Kind: models.KindNextQuestion, Key: ident}},
		Then: func(ctx *engine.Context) error {
			q, err := models.NewNextQuestion(ident)
			if err != nil {
				return err
			}
			_, err = ctx.Assert(q)
			return err
		},
	}, nil
}

// StateOf reports the flow state of ident
func StateOf(wm *engine.WorkingMemory, ident string) QuestionState {
	if _, ok := wm.Lookup(models.KindAnswer, ident); ok {
		return QuestionAnswered
	}
	if _, ok := wm.Lookup(models.KindNextQuestion, ident); ok {
		return QuestionPending
	}
	return QuestionUnasked
}

// PendingQuestion returns the pending ident, if any
func PendingQuestion(wm *engine.WorkingMemory) (string, bool) {
	pending := wm.Facts(models.KindNextQuestion)
	if len(pending) == 0 {
		return "", false
	}
	return pending[0].Fact.Key(), true
}
