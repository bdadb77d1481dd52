package agency

import (
	"context"
	"fmt"
	"path/filepath"

	"sigil/internal/assembler"
	"sigil/internal/command"
	"sigil/internal/index"
	"sigil/internal/logging"
	"sigil/internal/model"
	"sigil/internal/store"
	"sigil/internal/token"
)

// QueryResult is the outcome of one user query pass.
type QueryResult struct {
	Reply       string
	SymbolsUsed []string
	Results     []command.Result
}

// QueryRunner executes the user-facing workflow: the phased prompt sequence
// under data/prompts/user, driven by a single user query.
type QueryRunner struct {
	cfg     Config
	store   *store.SymbolStore
	index   *index.Index
	invoker model.Invoker
	encoder token.Encoder

	shared []string
	phases []Phase
}

// NewQueryRunner loads the shared and user-workflow prompts.
func NewQueryRunner(cfg Config, st *store.SymbolStore, ix *index.Index, inv model.Invoker, enc token.Encoder) (*QueryRunner, error) {
	shared, err := loadSharedPrompts(cfg.PromptDir)
	if err != nil {
		return nil, err
	}
	phases, err := loadPhases(filepath.Join(cfg.PromptDir, "user"))
	if err != nil {
		return nil, err
	}
	return &QueryRunner{
		cfg:     cfg,
		store:   st,
		index:   ix,
		invoker: inv,
		encoder: enc,
		shared:  shared,
		phases:  phases,
	}, nil
}

// Run retrieves the k nearest symbols to the query, then walks every phase:
// assemble, invoke, interpret. A model failure aborts the remaining phases
// and propagates. The final phase's reply is the answer.
func (q *QueryRunner) Run(ctx context.Context, sessionID, userQuery string, k int) (*QueryResult, error) {
	timer := logging.StartTimer(logging.CategoryAgency, "Query")
	defer timer.Stop()

	matches, err := q.index.Search(ctx, userQuery, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve symbols: %w", err)
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	symbols, err := q.store.GetMany(ids)
	if err != nil {
		return nil, err
	}

	baseHistory, err := q.store.History(sessionID, 0)
	if err != nil {
		return nil, err
	}
	if err := q.store.AppendTurn(sessionID, "user", userQuery); err != nil {
		return nil, err
	}

	interpreter := command.New(q.store)
	var interim []assembler.HistoryTurn
	var allResults []command.Result
	var finalReply string

	for _, phase := range q.phases {
		asm := assembler.New(q.encoder, q.cfg.MaxTokens, q.cfg.SystemReserve)
		for _, shared := range q.shared {
			asm.AddSystemPrompt(shared)
		}
		asm.AddSystemPrompt(phase.Prompt)
		for _, turn := range baseHistory {
			asm.AddHistory(turn.Role, turn.Content)
		}
		for _, turn := range interim {
			asm.AddHistory(turn.Role, turn.Content)
		}
		for _, sym := range symbols {
			asm.AddSymbol(sym, sym.Relevance)
		}

		reply, err := q.invoker.Invoke(ctx, asm.BuildPrompt(userQuery))
		if err != nil {
			return nil, fmt.Errorf("phase %s: %w", phase.ID, err)
		}

		allResults = append(allResults, interpreter.Run(ctx, reply)...)
		interim = append(interim, assembler.HistoryTurn{Role: "assistant", Content: reply})
		finalReply = reply
	}

	if err := q.store.AppendTurn(sessionID, "assistant", finalReply); err != nil {
		return nil, err
	}

	used := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		used = append(used, sym.ID)
	}
	logging.Agency("Query complete: %d phases, %d directives, %d symbols used",
		len(q.phases), len(allResults), len(used))

	return &QueryResult{
		Reply:       finalReply,
		SymbolsUsed: used,
		Results:     allResults,
	}, nil
}
