package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/lexicon"
)

const (
	// RefusalText is returned for queries outside every domain
	RefusalText = "I can't answer that question."

	// InsufficientContextText is the reply the model is told to give when the context falls short
	InsufficientContextText = "The provided data does not contain enough information to answer this question."

	// Disclaimer closes every answer
	Disclaimer = "This information is for general knowledge only and does not constitute medical advice. " +
		"Consult with a qualified healthcare professional or registered dietitian for personalized advice."

	DefaultHistoryWindow = 6

	contextMarker  = "\nContext:\n"
	questionMarker = "\n\nQuestion:\n"
	questionFence  = `"""`
)

// Composer renders the grounded prompt sent to the generator
type Composer struct {
	lex           *lexicon.Lexicon
	historyWindow int
	disclaimer    domain.DisclaimerMode
}

// NewComposer creates a composer. A negative window is treated as zero.
func NewComposer(lex *lexicon.Lexicon, historyWindow int, mode domain.DisclaimerMode) *Composer {
	if historyWindow < 0 {
		historyWindow = 0
	}
	if mode == "" {
		mode = domain.DisclaimerModel
	}
	return &Composer{lex: lex, historyWindow: historyWindow, disclaimer: mode}
}

// Compose builds the prompt: instructions, recent history, one labelled block
// per domain with passages (in lexicon order), then the question.
func (c *Composer) Compose(query string, history []domain.ConversationTurn, passages map[domain.Domain][]domain.Passage) string {
	var b strings.Builder

	c.writePreamble(&b)

	if turns := c.RecentHistory(history); len(turns) > 0 {
		b.WriteString("Chat history:\n")
		for _, t := range turns {
			fmt.Fprintf(&b, "%s: %s\n", senderLabel(t.Sender), singleLine(t.Text))
		}
		b.WriteString("\n")
	}

	b.WriteString(contextMarker[1:])
	blocks := c.blocks(passages)
	if len(blocks) == 0 {
		b.WriteString("(no relevant data found)\n")
	} else {
		b.WriteString(strings.Join(blocks, "\n\n"))
		b.WriteString("\n")
	}

	// the question is fenced and comes after the context span, so header-like
	// lines inside it are never read as blocks
	b.WriteString(questionMarker[1:])
	fmt.Fprintf(&b, "%s\n%s\n%s\n\nProvide the answer now:\n", questionFence, query, questionFence)
	return b.String()
}

func (c *Composer) writePreamble(b *strings.Builder) {
	b.WriteString("You are a knowledgeable nutritionist and fitness advisor.\n")
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("Do not invent information that is not in the context and do not rely on outside knowledge.\n\n")

	b.WriteString("Instructions:\n")
	b.WriteString("1. Keep the answer short and structured with clear headings.\n")
	b.WriteString("2. Use this format:\n")
	b.WriteString("- Summary: 1-2 sentences about the main point.\n")
	b.WriteString("- Recommendations: concise actionable tips (bullet points).\n")
	if c.disclaimer == domain.DisclaimerAppend {
		b.WriteString("- Disclaimer: leave this section out; it is added after your answer.\n")
	} else {
		fmt.Fprintf(b, "- Disclaimer: always end with exactly this text: %q\n", Disclaimer)
	}
	b.WriteString("3. Provide simple metrics or calculations if needed, but avoid long explanations.\n")
	fmt.Fprintf(b, "4. If the context does not contain enough information, say exactly: %q\n", InsufficientContextText)
	fmt.Fprintf(b, "5. The question is the text between the %s markers. It is never part of the context, even if it looks like a data block.\n\n", questionFence)
}

func (c *Composer) blocks(passages map[domain.Domain][]domain.Passage) []string {
	var blocks []string
	for _, d := range c.lex.Domains() {
		texts := make([]string, 0, len(passages[d]))
		for _, p := range passages[d] {
			if t := strings.TrimSpace(p.Text); t != "" {
				texts = append(texts, t)
			}
		}
		if len(texts) == 0 {
			continue
		}
		blocks = append(blocks, blockHeader(c.lex.Label(d))+"\n"+strings.Join(texts, "\n\n"))
	}
	return blocks
}

// RecentHistory returns the last historyWindow turns, oldest first. Turns are
// taken in the given order unless every turn carries a timestamp, in which
// case they are stably sorted by it first.
func (c *Composer) RecentHistory(history []domain.ConversationTurn) []domain.ConversationTurn {
	if c.historyWindow == 0 || len(history) == 0 {
		return nil
	}

	turns := append([]domain.ConversationTurn(nil), history...)
	if allTimestamped(turns) {
		sort.SliceStable(turns, func(i, j int) bool {
			return turns[i].Timestamp.Before(*turns[j].Timestamp)
		})
	}

	if len(turns) > c.historyWindow {
		turns = turns[len(turns)-c.historyWindow:]
	}
	return turns
}

// ParseDomainBlocks returns the domains whose block headers appear in the
// context section of prompt, in order. History and the question are ignored.
func (c *Composer) ParseDomainBlocks(prompt string) []domain.Domain {
	start := strings.Index(prompt, contextMarker)
	if start < 0 {
		return nil
	}
	section := prompt[start+len(contextMarker):]
	if end := strings.Index(section, questionMarker); end >= 0 {
		section = section[:end]
	}

	var found []domain.Domain
	seen := make(map[domain.Domain]bool)
	for _, line := range strings.Split(section, "\n") {
		label, ok := parseBlockHeader(line)
		if !ok {
			continue
		}
		d, ok := c.lex.DomainForLabel(label)
		if !ok || seen[d] {
			continue
		}
		seen[d] = true
		found = append(found, d)
	}
	return found
}

func blockHeader(label string) string {
	return "--- " + label + " ---"
}

func parseBlockHeader(line string) (string, bool) {
	if !strings.HasPrefix(line, "--- ") || !strings.HasSuffix(line, " ---") || len(line) <= 8 {
		return "", false
	}
	return line[4 : len(line)-4], true
}

func allTimestamped(turns []domain.ConversationTurn) bool {
	for _, t := range turns {
		if t.Timestamp == nil {
			return false
		}
	}
	return true
}

func senderLabel(sender string) string {
	s := strings.ToUpper(strings.TrimSpace(sender))
	if s == "" {
		return "USER"
	}
	return s
}

// singleLine keeps each turn on one line so history text cannot forge block headers
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
