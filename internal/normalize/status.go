package normalize

import (
	"regexp"
	"strings"

	"oficina/internal"
)

// Checked in order; the first status with a keyword contained in the folded
// input wins. "aprovad" sits under in_progress so that "orçamento aprovado"
// is not read as still awaiting approval.
var statusVocabulary = []struct {
	status   internal.OrderStatus
	keywords []string
}{
	{internal.StatusCancelled, []string{"cancel", "desist", "recusad", "reprovad", "rejected", "abandon"}},
	{internal.StatusCompleted, []string{"conclu", "finaliz", "entregue", "encerrad", "fechad", "complet", "done", "closed", "finished", "delivered"}},
	{internal.StatusInProgress, []string{"andamento", "em reparo", "reparando", "conserto", "execuc", "manutenc", "aprovad", "progress", "repairing", "approved"}},
	{internal.StatusPendingApproval, []string{"aprovac", "autoriza", "orcamento", "approval", "quote", "estimate"}},
	{internal.StatusPending, []string{"abert", "pendente", "aguardando", "recebid", "open", "pending", "received", "waiting"}},
}

// Short pending words only count as whole words: "renovado" is not "novo".
var rePendingWord = regexp.MustCompile(`\b(novo|nova|new)\b`)

// Status classifies free-form status text. Empty input is pending; anything
// unrecognised is treated as still in progress.
func Status(raw string) internal.OrderStatus {
	s := Key(raw)
	if s == "" {
		return internal.StatusPending
	}
	for _, entry := range statusVocabulary {
		for _, kw := range entry.keywords {
			if strings.Contains(s, kw) {
				return entry.status
			}
		}
	}
	if rePendingWord.MatchString(s) {
		return internal.StatusPending
	}
	return internal.StatusInProgress
}
