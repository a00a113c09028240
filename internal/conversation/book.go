package conversation

import (
	"embed"
	"fmt"
	"strconv"
	"strings"
)

//go:embed prompts/*.md
var promptFS embed.FS

// Party is one side of the conversation.
type Party struct {
	Role      Role
	Name      string
	Statement string
}

func (p Party) displayName() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return sanitizeStatement(name)
	}
	return "the " + strings.ToLower(p.Role.Title())
}

// PromptInput carries everything a template may reference.
type PromptInput struct {
	Self        Party
	Other       Party
	Round       int
	TotalRounds int
	Topic       string
	History     []Turn
	LastMessage string
}

// PromptBook renders the instruction sent to an agent for a stage.
type PromptBook interface {
	Compose(stage Stage, in PromptInput) string
}

type templateBook struct {
	role      Role
	templates map[Stage]string
}

// BookFor returns the embedded prompt book for a role.
func BookFor(role Role) PromptBook {
	book := &templateBook{role: role, templates: map[Stage]string{}}
	for _, stage := range []Stage{StageOpening, StageProbing, StageClosing} {
		name := fmt.Sprintf("prompts/%s_%s.md", role, stage)
		data, err := promptFS.ReadFile(name)
		if err != nil {
			continue
		}
		book.templates[stage] = string(data)
	}
	return book
}

const fallbackTemplate = "You speak for {{NAME}}.\nProfile: {{STATEMENT}}\nOther side: {{COUNTERPART_STATEMENT}}\n\n{{CONTEXT}}\nRound {{ROUND}} of {{TOTAL_ROUNDS}}. Topic: {{TOPIC}}. Reply in 1 to 3 sentences."

func (b *templateBook) Compose(stage Stage, in PromptInput) string {
	template := b.templates[stage]
	if strings.TrimSpace(template) == "" {
		template = fallbackTemplate
	}

	topic := in.Topic
	if topic == "" {
		topic = "general fit"
	}

	replacer := strings.NewReplacer(
		"{{NAME}}", in.Self.displayName(),
		"{{STATEMENT}}", sanitizeStatement(in.Self.Statement),
		"{{COUNTERPART_STATEMENT}}", sanitizeStatement(in.Other.Statement),
		"{{CONTEXT}}", contextBlock(in),
		"{{TOPIC}}", topic,
		"{{ROUND}}", strconv.Itoa(in.Round),
		"{{TOTAL_ROUNDS}}", strconv.Itoa(in.TotalRounds),
	)
	return strings.TrimSpace(replacer.Replace(template))
}

func contextBlock(in PromptInput) string {
	var b strings.Builder
	if len(in.History) == 0 && in.LastMessage == "" {
		b.WriteString("This is the start of the conversation.\n")
		return b.String()
	}

	if len(in.History) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, turn := range in.History {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role.Role().Title(), sanitizeStatement(turn.Content))
		}
	}
	if in.LastMessage != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "The %s just said: %q\n", strings.ToLower(in.Other.Role.Title()), sanitizeStatement(in.LastMessage))
	}
	return b.String()
}
