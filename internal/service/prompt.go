package service

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/ragsync/internal/domain"
)

const expansionPrompt = `You rewrite search queries for a document retrieval system.
Write %d alternative phrasings of the query below. If the query is not in English,
include an English translation among them. Use synonyms for key terms.
Return one phrasing per line with no numbering and no commentary.

Query: %s`

const condensePrompt = `Given the conversation below and a follow-up question, rewrite the
follow-up as a standalone question that can be understood without the conversation.
Keep the original language. Return only the rewritten question.

Conversation:
%s
Follow-up question: %s`

const answerSystemPrompt = `You are a helpful assistant answering questions about the user's documents.
Rules:
- Answer only from the context below. Do not use outside knowledge.
- If the context does not contain the answer, say "I don't have that information" and stop.
- Paraphrase the context in your own words instead of copying it verbatim.
- End with a line "Sources:" followed by the names of the documents you used.

Context:
%s`

const rerankPrompt = `Rate how relevant each passage is to the query on a scale from 0 to 10.
Respond with only a JSON array of numbers, one per passage, in the order given.

Query: %s

%s`

func buildExpansionMessages(query string, n int) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleUser, Content: fmt.Sprintf(expansionPrompt, n, query)},
	}
}

func buildCondenseMessages(query string, history []domain.Message) []domain.Message {
	var b strings.Builder
	for _, m := range history {
		role := "User"
		if m.Role == domain.RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	return []domain.Message{
		{Role: domain.RoleUser, Content: fmt.Sprintf(condensePrompt, b.String(), query)},
	}
}

// buildAnswerMessages assembles system rules, retrieved context, prior turns
// and the question.
func buildAnswerMessages(query string, chunks []RetrievedChunk, history []domain.Message) []domain.Message {
	msgs := make([]domain.Message, 0, len(history)+2)
	msgs = append(msgs, domain.Message{
		Role:    domain.RoleSystem,
		Content: fmt.Sprintf(answerSystemPrompt, formatContext(chunks)),
	})
	for _, m := range history {
		msgs = append(msgs, domain.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, domain.Message{Role: domain.RoleUser, Content: query})
	return msgs
}

func formatContext(chunks []RetrievedChunk) string {
	if len(chunks) == 0 {
		return "(no documents matched)"
	}
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] Document: %s", i+1, DisplayName(c.Metadata))
		if page, ok := domain.MetaInt(c.Metadata, domain.MetaPageNumber); ok {
			fmt.Fprintf(&b, " (page %d)", page)
		}
		b.WriteString("\n")
		b.WriteString(c.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildRerankMessages(query string, documents []string) []domain.Message {
	var b strings.Builder
	for i, d := range documents {
		fmt.Fprintf(&b, "Passage %d:\n%s\n\n", i+1, truncate(d, 1500))
	}
	return []domain.Message{
		{Role: domain.RoleUser, Content: fmt.Sprintf(rerankPrompt, query, strings.TrimRight(b.String(), "\n"))},
	}
}
