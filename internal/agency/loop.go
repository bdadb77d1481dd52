// Package agency runs the orchestration loop: retrieve candidate symbols,
// assemble a prompt per phase, invoke the model, interpret its directives,
// and fold the results back into the working set for the next phase.
package agency

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"sigil/internal/assembler"
	"sigil/internal/command"
	"sigil/internal/index"
	"sigil/internal/integrate"
	"sigil/internal/logging"
	"sigil/internal/model"
	"sigil/internal/store"
	"sigil/internal/token"
)

// sharedPromptFiles are loaded in order ahead of every phase prompt.
var sharedPromptFiles = []string{
	"system_prompt.txt",
	"command_syntax.txt",
	"symbol_format.txt",
}

// Config holds loop parameters.
type Config struct {
	SessionID     string
	SymbolLimit   int
	PromptDir     string
	SeedQuery     string
	Interval      time.Duration
	MaxTokens     int
	SystemReserve int
}

// Phase is one named prompt stage of a workflow.
type Phase struct {
	ID     string
	Prompt string
}

// Loop drives repeated self-directed iterations against the knowledge store.
type Loop struct {
	cfg     Config
	store   *store.SymbolStore
	index   *index.Index
	invoker model.Invoker
	encoder token.Encoder

	shared []string
	phases []Phase
}

// NewLoop wires a loop from its collaborators and loads the prompt files.
func NewLoop(cfg Config, st *store.SymbolStore, ix *index.Index, inv model.Invoker, enc token.Encoder) (*Loop, error) {
	shared, err := loadSharedPrompts(cfg.PromptDir)
	if err != nil {
		return nil, err
	}
	phases, err := loadPhases(filepath.Join(cfg.PromptDir, "self"))
	if err != nil {
		return nil, err
	}

	if cfg.SessionID == "" {
		cfg.SessionID = "self"
	}
	if cfg.SymbolLimit <= 0 {
		cfg.SymbolLimit = 32
	}

	return &Loop{
		cfg:     cfg,
		store:   st,
		index:   ix,
		invoker: inv,
		encoder: enc,
		shared:  shared,
		phases:  phases,
	}, nil
}

func loadSharedPrompts(promptDir string) ([]string, error) {
	var prompts []string
	for _, name := range sharedPromptFiles {
		path := filepath.Join(promptDir, "shared", name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("shared prompt missing: %w", err)
		}
		prompts = append(prompts, strings.TrimSpace(string(data)))
	}
	return prompts, nil
}

func loadPhases(dir string) ([]Phase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("phase prompt directory unreadable: %w", err)
	}

	var phases []Phase
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		phases = append(phases, Phase{
			ID:     strings.TrimSuffix(entry.Name(), ".txt"),
			Prompt: strings.TrimSpace(string(data)),
		})
	}
	if len(phases) == 0 {
		return nil, fmt.Errorf("no phase prompts found in %s", dir)
	}

	sort.Slice(phases, func(i, j int) bool { return phases[i].ID < phases[j].ID })
	return phases, nil
}

// Run iterates until the context is cancelled, sleeping the configured
// interval between passes. A failed iteration is logged and the loop
// continues; the failure already aborted that iteration's remaining phases.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.cfg.Interval
	if interval <= 0 {
		interval = 300 * time.Second
	}

	iteration := 0
	for {
		iteration++
		if err := l.RunIteration(ctx, iteration); err != nil {
			logging.Get(logging.CategoryAgency).Error("Iteration %d failed: %v", iteration, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// RunIteration executes one full pass: retrieval, then every phase in order.
// A model failure aborts the remaining phases of the pass and is returned.
func (l *Loop) RunIteration(ctx context.Context, iteration int) error {
	timer := logging.StartTimer(logging.CategoryAgency, "RunIteration")
	defer timer.Stop()

	runID := uuid.NewString()
	logging.Agency("Iteration %d starting (run=%s)", iteration, runID)

	ws := integrate.NewWorkingSet()
	if err := l.retrieveCandidates(ctx, ws); err != nil {
		logging.Get(logging.CategoryAgency).Warn("Candidate retrieval failed: %v", err)
	}

	baseHistory, err := l.store.History(l.cfg.SessionID, 0)
	if err != nil {
		return fmt.Errorf("load session history: %w", err)
	}

	startNote := fmt.Sprintf("[iteration %d] run %s started at %s",
		iteration, runID, time.Now().UTC().Format(time.RFC3339))
	if err := l.store.AppendTurn(l.cfg.SessionID, "system", startNote); err != nil {
		return err
	}

	interpreter := command.New(l.store)
	integrator := integrate.New(l.store)
	var interim []assembler.HistoryTurn

	for _, phase := range l.phases {
		logging.AgencyDebug("Phase %s: %d working symbols, %d interim turns",
			phase.ID, ws.Len(), len(interim))

		prompt := l.buildPhasePrompt(phase, iteration, baseHistory, interim, ws)

		reply, err := l.invoker.Invoke(ctx, prompt)
		if err != nil {
			failNote := fmt.Sprintf("[iteration %d] phase %s failed: %v", iteration, phase.ID, err)
			if appendErr := l.store.AppendTurn(l.cfg.SessionID, "system", failNote); appendErr != nil {
				logging.Get(logging.CategoryAgency).Error("Failed to record phase failure: %v", appendErr)
			}
			return fmt.Errorf("phase %s: %w", phase.ID, err)
		}

		interim = append(interim, assembler.HistoryTurn{Role: "assistant", Content: reply})
		if err := l.store.AppendTurn(l.cfg.SessionID, "assistant", fmt.Sprintf("[%s] %s", phase.ID, reply)); err != nil {
			return err
		}

		results := interpreter.Run(ctx, reply)
		notes := integrator.Integrate(results, ws)
		for _, note := range notes {
			formatted := fmt.Sprintf("[command][%s] %s", phase.ID, note)
			interim = append(interim, assembler.HistoryTurn{Role: "system", Content: formatted})
			if err := l.store.AppendTurn(l.cfg.SessionID, "system", formatted); err != nil {
				return err
			}
		}
	}

	logging.Agency("Iteration %d complete: %d symbols in working set", iteration, ws.Len())
	return nil
}

// retrieveCandidates seeds the working set with the nearest symbols to the
// configured seed query.
func (l *Loop) retrieveCandidates(ctx context.Context, ws *integrate.WorkingSet) error {
	query := l.cfg.SeedQuery
	if query == "" {
		query = "active goals and open threads"
	}

	matches, err := l.index.Search(ctx, query, l.cfg.SymbolLimit)
	if err != nil {
		return err
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	syms, err := l.store.GetMany(ids)
	if err != nil {
		return err
	}
	for _, sym := range syms {
		ws.AddSymbol(sym)
	}
	logging.AgencyDebug("Retrieved %d candidate symbols for %q", len(syms), query)
	return nil
}

func (l *Loop) buildPhasePrompt(phase Phase, iteration int, baseHistory []store.Turn, interim []assembler.HistoryTurn, ws *integrate.WorkingSet) string {
	asm := assembler.New(l.encoder, l.cfg.MaxTokens, l.cfg.SystemReserve)
	for _, shared := range l.shared {
		asm.AddSystemPrompt(shared)
	}
	asm.AddSystemPrompt(phase.Prompt)

	for _, turn := range baseHistory {
		asm.AddHistory(turn.Role, turn.Content)
	}
	for _, turn := range interim {
		asm.AddHistory(turn.Role, turn.Content)
	}
	for _, agent := range ws.Agents() {
		asm.AddAgent(agent)
	}
	for _, sym := range ws.Symbols() {
		asm.AddSymbol(sym, sym.Relevance)
	}

	userPrompt := fmt.Sprintf(
		"Self-agency loop iteration %d | phase %s | timestamp %s. Execute according to the active mode instructions and provide structured output.",
		iteration, phase.ID, time.Now().UTC().Format(time.RFC3339))
	return asm.BuildPrompt(userPrompt)
}
