// Package snapshot persists a Store and Scheduler to YAML and restores
// them, so a loomwork session can survive across process restarts. YAML
// keeps the persisted state human-inspectable on disk.
package snapshot

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	hcontext "github.com/gitrdm/loomwork/pkg/context"
	"github.com/gitrdm/loomwork/pkg/hypertext"
	"github.com/gitrdm/loomwork/pkg/scheduler"
	"github.com/gitrdm/loomwork/pkg/store"
)

// Snapshot is the on-disk representation of a loomwork session.
type Snapshot struct {
	Content         []ContentEntry    `yaml:"content"`
	Canonical       map[string]string `yaml:"canonical"`
	Promises        []PromiseEntry    `yaml:"promises"`
	Aliases         map[string]string `yaml:"aliases"`
	Contexts        []ContextEntry    `yaml:"contexts"`
	ActiveContexts  []int             `yaml:"active_contexts"`
	PendingContexts []int             `yaml:"pending_contexts"`
}

// ContentEntry is one address's stored content.
type ContentEntry struct {
	Address   string          `yaml:"address"`
	Kind      string          `yaml:"kind"` // "raw" or "workspace"
	Raw       *RawEntry       `yaml:"raw,omitempty"`
	Workspace *WorkspaceEntry `yaml:"workspace,omitempty"`
}

// RawEntry mirrors hypertext.Raw.
type RawEntry struct {
	Fragments []FragmentEntry `yaml:"fragments"`
}

// FragmentEntry mirrors hypertext.Fragment.
type FragmentEntry struct {
	Literal string `yaml:"literal,omitempty"`
	Addr    string `yaml:"addr,omitempty"`
	IsAddr  bool   `yaml:"is_addr"`
}

// WorkspaceEntry mirrors hypertext.Workspace.
type WorkspaceEntry struct {
	Predecessor           string             `yaml:"predecessor,omitempty"`
	Question              string             `yaml:"question"`
	AnswerPromise         string             `yaml:"answer_promise"`
	FinalWorkspacePromise string             `yaml:"final_workspace_promise"`
	Scratchpad            string             `yaml:"scratchpad"`
	Subquestions          []SubquestionEntry `yaml:"subquestions,omitempty"`
}

// SubquestionEntry mirrors hypertext.Subquestion.
type SubquestionEntry struct {
	Question       string `yaml:"question"`
	Answer         string `yaml:"answer"`
	FinalWorkspace string `yaml:"final_workspace"`
}

// PromiseEntry is one still-pending promise and who is waiting on it.
type PromiseEntry struct {
	Address   string            `yaml:"address"`
	Promisees []DryContextEntry `yaml:"promisees,omitempty"`
}

// DryContextEntry mirrors context.DryContext; ParentIndex indexes into
// the snapshot's flat Contexts table, or is -1 for no parent.
type DryContextEntry struct {
	WorkspaceAddr string   `yaml:"workspace_addr"`
	Unlocked      []string `yaml:"unlocked"`
	ParentIndex   int      `yaml:"parent_index"`
}

// ContextEntry is enough to reconstruct a Context via context.New: its
// workspace address, its unlocked set, and its parent (by index into the
// same table, always appearing earlier since a context is always built
// after its parent).
type ContextEntry struct {
	WorkspaceAddr string   `yaml:"workspace_addr"`
	Unlocked      []string `yaml:"unlocked"`
	ParentIndex   int      `yaml:"parent_index"`
}

// SessionSnapshot extends Snapshot with the information needed to
// reconstruct a scheduler.RootQuestionSession rather than a bare
// Store/Scheduler pair: which promise is the root question's final
// answer, and which context (by index into Contexts, or -1 if the
// session had already produced its final answer) was current.
type SessionSnapshot struct {
	Snapshot          `yaml:",inline"`
	RootAnswerPromise string `yaml:"root_answer_promise"`
	CurrentIndex      int    `yaml:"current_index"`
}

// Export captures the full state of db and sched into a Snapshot.
func Export(db *store.Store, sched *scheduler.Scheduler) (*Snapshot, error) {
	snap, _, err := buildSnapshot(db, sched)
	return snap, err
}

// buildSnapshot is Export's implementation, additionally returning the
// context->index table so ExportSession can locate a specific context
// (the session's Current) inside the flattened Contexts table.
func buildSnapshot(db *store.Store, sched *scheduler.Scheduler) (*Snapshot, map[*hcontext.Context]int, error) {
	snap := &Snapshot{
		Canonical: make(map[string]string),
		Aliases:   make(map[string]string),
	}

	for addr, content := range db.ContentSnapshot() {
		entry, err := encodeContent(addr, content)
		if err != nil {
			return nil, nil, err
		}
		snap.Content = append(snap.Content, entry)
	}
	for key, addr := range db.CanonicalSnapshot() {
		snap.Canonical[key] = addr.String()
	}
	for addr, canonical := range db.AliasSnapshot() {
		snap.Aliases[addr.String()] = canonical.String()
	}

	contextIndex := make(map[*hcontext.Context]int)
	for addr, promisees := range db.PendingPromisesSnapshot() {
		entry := PromiseEntry{Address: addr.String()}
		for _, raw := range promisees {
			dry, ok := raw.(hcontext.DryContext)
			if !ok {
				return nil, nil, errors.Errorf("promisee for %s is not a DryContext", addr)
			}
			parentIdx, err := indexParent(snap, contextIndex, dry.Parent)
			if err != nil {
				return nil, nil, err
			}
			entry.Promisees = append(entry.Promisees, DryContextEntry{
				WorkspaceAddr: dry.WorkspaceAddr.String(),
				Unlocked:      encodeSet(dry.Unlocked),
				ParentIndex:   parentIdx,
			})
		}
		snap.Promises = append(snap.Promises, entry)
	}

	for _, ctx := range sched.ActiveContexts() {
		idx, err := indexContext(snap, contextIndex, ctx)
		if err != nil {
			return nil, nil, err
		}
		snap.ActiveContexts = append(snap.ActiveContexts, idx)
	}
	for _, ctx := range sched.PendingContexts() {
		idx, err := indexContext(snap, contextIndex, ctx)
		if err != nil {
			return nil, nil, err
		}
		snap.PendingContexts = append(snap.PendingContexts, idx)
	}

	return snap, contextIndex, nil
}

// ExportSession captures a full RootQuestionSession: the underlying
// Store/Scheduler state plus which promise is the root's final answer and
// which context, by index, the session was currently showing.
func ExportSession(session *scheduler.RootQuestionSession) (*SessionSnapshot, error) {
	snap, contextIndex, err := buildSnapshot(session.Scheduler.Store(), session.Scheduler)
	if err != nil {
		return nil, err
	}
	currentIndex := -1
	if session.Current != nil {
		idx, err := indexContext(snap, contextIndex, session.Current)
		if err != nil {
			return nil, err
		}
		currentIndex = idx
	}
	return &SessionSnapshot{
		Snapshot:          *snap,
		RootAnswerPromise: session.FinalAnswerPromise.String(),
		CurrentIndex:      currentIndex,
	}, nil
}

// indexContext returns ctx's index in the flat table, appending a new
// entry (after first indexing its parent) if this is the first time ctx
// has been seen.
func indexContext(snap *Snapshot, seen map[*hcontext.Context]int, ctx *hcontext.Context) (int, error) {
	if ctx == nil {
		return -1, nil
	}
	if idx, ok := seen[ctx]; ok {
		return idx, nil
	}
	parentIdx, err := indexContext(snap, seen, ctx.Parent)
	if err != nil {
		return 0, err
	}
	entry := ContextEntry{
		WorkspaceAddr: ctx.WorkspaceAddr.String(),
		Unlocked:      encodeSet(ctx.Unlocked),
		ParentIndex:   parentIdx,
	}
	snap.Contexts = append(snap.Contexts, entry)
	idx := len(snap.Contexts) - 1
	seen[ctx] = idx
	return idx, nil
}

func indexParent(snap *Snapshot, seen map[*hcontext.Context]int, parent *hcontext.Context) (int, error) {
	return indexContext(snap, seen, parent)
}

func encodeSet(s hcontext.Set) []string {
	out := make([]string, 0, len(s))
	for addr := range s {
		out = append(out, addr.String())
	}
	return out
}

func encodeContent(addr store.Address, content store.Content) (ContentEntry, error) {
	switch c := content.(type) {
	case hypertext.Raw:
		fragments := make([]FragmentEntry, len(c.Fragments))
		for i, f := range c.Fragments {
			fe := FragmentEntry{IsAddr: f.IsAddr}
			if f.IsAddr {
				fe.Addr = f.Addr.String()
			} else {
				fe.Literal = f.Literal
			}
			fragments[i] = fe
		}
		return ContentEntry{Address: addr.String(), Kind: "raw", Raw: &RawEntry{Fragments: fragments}}, nil
	case hypertext.Workspace:
		we := &WorkspaceEntry{
			Question:              c.Question.String(),
			AnswerPromise:         c.AnswerPromise.String(),
			FinalWorkspacePromise: c.FinalWorkspacePromise.String(),
			Scratchpad:            c.Scratchpad.String(),
		}
		if c.Predecessor != nil {
			we.Predecessor = c.Predecessor.String()
		}
		for _, sq := range c.Subquestions {
			we.Subquestions = append(we.Subquestions, SubquestionEntry{
				Question:       sq.Question.String(),
				Answer:         sq.Answer.String(),
				FinalWorkspace: sq.FinalWorkspace.String(),
			})
		}
		return ContentEntry{Address: addr.String(), Kind: "workspace", Workspace: we}, nil
	default:
		return ContentEntry{}, errors.Errorf("content at %s has unsupported type %T", addr, content)
	}
}

// Save writes snap to path as YAML.
func Save(snap *Snapshot, path string) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write snapshot %s", path)
	}
	return nil
}

// Load reads a Snapshot from path.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read snapshot %s", path)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "unmarshal snapshot")
	}
	return &snap, nil
}

// Restore rebuilds a Store and Scheduler from snap.
func Restore(snap *Snapshot) (*store.Store, *scheduler.Scheduler, error) {
	db, sched, _, err := rebuild(snap)
	return db, sched, err
}

// RestoreSession rebuilds a full scheduler.RootQuestionSession from a
// SessionSnapshot produced by ExportSession.
func RestoreSession(snap *SessionSnapshot) (*scheduler.RootQuestionSession, error) {
	_, sched, built, err := rebuild(&snap.Snapshot)
	if err != nil {
		return nil, err
	}
	promise, err := store.ParseAddress(snap.RootAnswerPromise)
	if err != nil {
		return nil, err
	}
	var current *hcontext.Context
	if snap.CurrentIndex >= 0 {
		if snap.CurrentIndex >= len(built) {
			return nil, errors.Errorf("current_index %d out of range", snap.CurrentIndex)
		}
		current = built[snap.CurrentIndex]
	}
	return &scheduler.RootQuestionSession{
		Session:            scheduler.Session{Scheduler: sched, Current: current},
		FinalAnswerPromise: promise,
	}, nil
}

// SaveSession exports session and writes it to path as YAML.
func SaveSession(session *scheduler.RootQuestionSession, path string) error {
	snap, err := ExportSession(session)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal session snapshot")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write session snapshot %s", path)
	}
	return nil
}

// LoadSession reads a SessionSnapshot from path and rebuilds it into a
// RootQuestionSession.
func LoadSession(path string) (*scheduler.RootQuestionSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read session snapshot %s", path)
	}
	var snap SessionSnapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "unmarshal session snapshot")
	}
	return RestoreSession(&snap)
}

// rebuild is the shared implementation behind Restore and RestoreSession:
// it reconstructs the Store, the Scheduler, and the flat table of
// decoded Contexts (indexed exactly as they were during Export), so
// RestoreSession can additionally look up the session's Current context
// by index.
func rebuild(snap *Snapshot) (*store.Store, *scheduler.Scheduler, []*hcontext.Context, error) {
	db := store.New(nil)

	content := make(map[store.Address]store.Content, len(snap.Content))
	for _, entry := range snap.Content {
		addr, err := store.ParseAddress(entry.Address)
		if err != nil {
			return nil, nil, nil, err
		}
		decoded, err := decodeContent(entry)
		if err != nil {
			return nil, nil, nil, err
		}
		content[addr] = decoded
	}

	canonical := make(map[string]store.Address, len(snap.Canonical))
	for key, addrStr := range snap.Canonical {
		addr, err := store.ParseAddress(addrStr)
		if err != nil {
			return nil, nil, nil, err
		}
		canonical[key] = addr
	}

	aliases := make(map[store.Address]store.Address, len(snap.Aliases))
	for fromStr, toStr := range snap.Aliases {
		from, err := store.ParseAddress(fromStr)
		if err != nil {
			return nil, nil, nil, err
		}
		to, err := store.ParseAddress(toStr)
		if err != nil {
			return nil, nil, nil, err
		}
		aliases[from] = to
	}

	promises := make(map[store.Address][]any, len(snap.Promises))
	db.RestoreFrom(content, canonical, promises, aliases)

	// Contexts must be rebuilt in table order: each entry's parent always
	// has a strictly smaller index (see indexContext), so a single
	// forward pass suffices.
	built := make([]*hcontext.Context, len(snap.Contexts))
	for i, entry := range snap.Contexts {
		ctx, err := decodeContext(db, entry, built)
		if err != nil {
			return nil, nil, nil, err
		}
		built[i] = ctx
	}

	for _, entry := range snap.Promises {
		addr, err := store.ParseAddress(entry.Address)
		if err != nil {
			return nil, nil, nil, err
		}
		var promisees []any
		for _, dce := range entry.Promisees {
			dry, err := decodeDryContext(dce, built)
			if err != nil {
				return nil, nil, nil, err
			}
			promisees = append(promisees, dry)
		}
		promises[addr] = promisees
	}

	sched := scheduler.New(db, nil)
	active := make([]*hcontext.Context, 0, len(snap.ActiveContexts))
	for _, idx := range snap.ActiveContexts {
		active = append(active, built[idx])
	}
	pending := make([]*hcontext.Context, 0, len(snap.PendingContexts))
	for _, idx := range snap.PendingContexts {
		pending = append(pending, built[idx])
	}
	sched.RestoreContexts(active, pending)

	return db, sched, built, nil
}

func decodeSet(addrs []string) (hcontext.Set, error) {
	set := make(hcontext.Set, len(addrs))
	for _, s := range addrs {
		addr, err := store.ParseAddress(s)
		if err != nil {
			return nil, err
		}
		set.Add(addr)
	}
	return set, nil
}

func decodeContext(db *store.Store, entry ContextEntry, built []*hcontext.Context) (*hcontext.Context, error) {
	addr, err := store.ParseAddress(entry.WorkspaceAddr)
	if err != nil {
		return nil, err
	}
	unlocked, err := decodeSet(entry.Unlocked)
	if err != nil {
		return nil, err
	}
	var parent *hcontext.Context
	if entry.ParentIndex >= 0 {
		parent = built[entry.ParentIndex]
	}
	return hcontext.New(addr, db, unlocked, parent)
}

func decodeDryContext(entry DryContextEntry, built []*hcontext.Context) (hcontext.DryContext, error) {
	addr, err := store.ParseAddress(entry.WorkspaceAddr)
	if err != nil {
		return hcontext.DryContext{}, err
	}
	unlocked, err := decodeSet(entry.Unlocked)
	if err != nil {
		return hcontext.DryContext{}, err
	}
	var parent *hcontext.Context
	if entry.ParentIndex >= 0 {
		parent = built[entry.ParentIndex]
	}
	return hcontext.DryContext{WorkspaceAddr: addr, Unlocked: unlocked, Parent: parent}, nil
}

func decodeContent(entry ContentEntry) (store.Content, error) {
	switch entry.Kind {
	case "raw":
		fragments := make([]hypertext.Fragment, len(entry.Raw.Fragments))
		for i, fe := range entry.Raw.Fragments {
			if fe.IsAddr {
				addr, err := store.ParseAddress(fe.Addr)
				if err != nil {
					return nil, err
				}
				fragments[i] = hypertext.Ref(addr)
			} else {
				fragments[i] = hypertext.Lit(fe.Literal)
			}
		}
		return hypertext.NewRaw(fragments...), nil
	case "workspace":
		we := entry.Workspace
		question, err := store.ParseAddress(we.Question)
		if err != nil {
			return nil, err
		}
		answer, err := store.ParseAddress(we.AnswerPromise)
		if err != nil {
			return nil, err
		}
		finalWS, err := store.ParseAddress(we.FinalWorkspacePromise)
		if err != nil {
			return nil, err
		}
		scratchpad, err := store.ParseAddress(we.Scratchpad)
		if err != nil {
			return nil, err
		}
		ws := hypertext.Workspace{
			Question:              question,
			AnswerPromise:         answer,
			FinalWorkspacePromise: finalWS,
			Scratchpad:            scratchpad,
		}
		if we.Predecessor != "" {
			pred, err := store.ParseAddress(we.Predecessor)
			if err != nil {
				return nil, err
			}
			ws.Predecessor = &pred
		}
		for _, sqe := range we.Subquestions {
			q, err := store.ParseAddress(sqe.Question)
			if err != nil {
				return nil, err
			}
			a, err := store.ParseAddress(sqe.Answer)
			if err != nil {
				return nil, err
			}
			w, err := store.ParseAddress(sqe.FinalWorkspace)
			if err != nil {
				return nil, err
			}
			ws.Subquestions = append(ws.Subquestions, hypertext.Subquestion{Question: q, Answer: a, FinalWorkspace: w})
		}
		return ws, nil
	default:
		return nil, errors.Errorf("unknown content kind %q", entry.Kind)
	}
}
