package agent

import (
	"context"
	"fmt"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/llm"
)

// Assembler builds the message sequence sent to a stage's model.
type Assembler struct {
	env *Env
}

// NewAssembler creates an assembler reading domain facts through env.
func NewAssembler(env *Env) *Assembler {
	return &Assembler{env: env}
}

// Assemble returns the stage prompt, the optional domain context, the
// stage's running context and the pending user message, in that order.
// The pending message is appended to state.CurrentContext.
func (a *Assembler) Assemble(ctx context.Context, state *domain.PlanState, v Variant) ([]llm.Message, error) {
	messages := make([]llm.Message, 0, len(state.CurrentContext)+3)
	messages = append(messages, llm.Message{Role: string(domain.RoleSystem), Content: v.Prompt()})

	facts, err := v.DomainContext(ctx, a.env, state)
	if err != nil {
		return nil, fmt.Errorf("build %s context: %w", v.Stage(), err)
	}
	if facts != "" {
		messages = append(messages, llm.Message{Role: string(domain.RoleSystem), Content: facts})
	}

	for _, m := range state.CurrentContext {
		messages = append(messages, llm.Message{Role: string(m.Role), Content: m.Content})
	}

	if pending := state.PendingUserMessage(); pending != "" {
		messages = append(messages, llm.Message{Role: string(domain.RoleUser), Content: pending})
		state.CurrentContext = append(state.CurrentContext, domain.Message{
			Role:    domain.RoleUser,
			Content: pending,
			Stage:   v.Stage(),
		})
	}
	return messages, nil
}
