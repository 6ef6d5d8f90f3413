package walker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mdhender/cook/internal/cookerr"
	"github.com/mdhender/cook/internal/fingerprint"
	"github.com/mdhender/cook/internal/graph"
	"github.com/mdhender/cook/internal/statcache"
	"github.com/mdhender/cook/internal/vm"
)

// Runner executes the shell command lines a recipe's out-of-date body
// evaluated to (spec §4.8 owns process spawning; Walker only needs
// something that runs a command list to completion).
type Runner interface {
	Run(ctx context.Context, node *graph.RecipeNode, commands []string) error
}

// Options configures a Walker.
type Options struct {
	Jobs              int            // 0 means one goroutine per recipe node, mirroring the teacher's sem==nil "unlimited" convention
	ContinueOnFailure bool           // spec §6's --continue
	HostCapacity      map[string]int // host tag -> concurrent slot count; a tag absent here is unbounded
	Force             bool           // spec §6's -B: skip the up-to-date check, always treat every node as stale

	// OnRecipeDone, if set, is called once per recipe node after its
	// outcome is decided, for a caller (cmd/cook's --metrics-addr) to
	// record without Walker depending on internal/metrics itself.
	OnRecipeDone func(target string, state State, d time.Duration)
}

// Walker drives spec §4.7's parallel build walk over an already
// constructed Graph: a worker pool bounded by Options.Jobs pulls from
// a shared ready queue, gated per node by a single-thread-tag mutex
// and a host-affinity slot pool.
type Walker struct {
	g     *graph.Graph
	stats *statcache.Cache
	fp    fingerprint.Store
	run   Runner
	opts  Options

	mu         sync.Mutex
	state      []State
	remaining  []int // per recipe-node: count of not-yet-done strict-edge producers
	dependents map[int][]int
	producers  map[int][]int // per recipe-node: its strict-edge producer recipe-node indices

	singleLock map[string]*sync.Mutex
	hostSlots  map[string]chan struct{}

	firstErr error
}

// New builds a Walker ready to walk g.
func New(g *graph.Graph, stats *statcache.Cache, fp fingerprint.Store, run Runner, opts Options) *Walker {
	w := &Walker{
		g:          g,
		stats:      stats,
		fp:         fp,
		run:        run,
		opts:       opts,
		state:      make([]State, len(g.Recipes)),
		remaining:  make([]int, len(g.Recipes)),
		dependents: make(map[int][]int),
		producers:  make(map[int][]int),
		singleLock: make(map[string]*sync.Mutex),
		hostSlots:  make(map[string]chan struct{}),
	}
	for tag, n := range opts.HostCapacity {
		if n > 0 {
			w.hostSlots[tag] = make(chan struct{}, n)
		}
	}
	w.computeDependencies()
	return w
}

// computeDependencies counts, for each recipe node, how many of its
// strict-edge ingredients are themselves produced by another recipe
// node, and records the reverse edge so a completion can decrement its
// dependents' counts.
func (w *Walker) computeDependencies() {
	for ri, node := range w.g.Recipes {
		count := 0
		for _, e := range node.Edges {
			if e.Type&graph.EdgeStrict == 0 {
				continue
			}
			producer := w.g.Files[e.File].Producer
			if producer < 0 || producer == ri {
				continue
			}
			count++
			w.dependents[producer] = append(w.dependents[producer], ri)
			w.producers[ri] = append(w.producers[ri], producer)
		}
		w.remaining[ri] = count
		if count == 0 {
			w.state[ri] = Ready
		}
	}
}

// Walk runs every recipe node to completion (or failure). A FIFO
// channel holds ready nodes; a bounded pool of worker goroutines
// drains it, and a pending WaitGroup (incremented on enqueue,
// decremented once a node's outcome has been recorded and its
// dependents notified) signals when the channel can be closed.
func (w *Walker) Walk(ctx context.Context) error {
	n := len(w.g.Recipes)
	if n == 0 {
		return nil
	}

	ready := make(chan int, n)
	var pending sync.WaitGroup

	w.mu.Lock()
	for ri, st := range w.state {
		if st == Ready {
			pending.Add(1)
			ready <- ri
		}
	}
	w.mu.Unlock()

	workers := w.opts.Jobs
	if workers <= 0 || workers > n {
		workers = n
	}

	var pool sync.WaitGroup
	for i := 0; i < workers; i++ {
		pool.Add(1)
		go func() {
			defer pool.Done()
			for ri := range ready {
				w.process(ctx, ri, ready, &pending)
				pending.Done()
			}
		}()
	}

	go func() {
		pending.Wait()
		close(ready)
	}()

	pool.Wait()
	return w.firstErr
}

// process runs one recipe node and propagates readiness to its
// dependents. A node whose own strict-edge producer failed is marked
// Failed without running, whether or not --continue was requested
// (spec §4.7/§7: a failure always poisons its dependents; --continue
// only controls whether unrelated goals keep going). Without
// --continue, shouldStop also short-circuits every other pending node
// once any failure has happened.
func (w *Walker) process(ctx context.Context, ri int, ready chan<- int, pending *sync.WaitGroup) {
	if w.poisoned(ri) || w.shouldStop() {
		w.finishTimed(ri, Failed, 0)
	} else {
		w.runOne(ctx, ri)
		if w.currentState(ri) == Failed {
			node := w.g.Recipes[ri]
			w.setFirstErr(fmt.Errorf("recipe for %q failed", w.g.Files[node.Targets[0]].Name))
		}
	}

	for _, dep := range w.dependents[ri] {
		w.mu.Lock()
		w.remaining[dep]--
		becomesReady := w.remaining[dep] == 0 && w.state[dep] == Blocked
		if becomesReady {
			w.state[dep] = Ready
		}
		w.mu.Unlock()
		if becomesReady {
			pending.Add(1)
			ready <- dep
		}
	}
}

func (w *Walker) shouldStop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.firstErr != nil && !w.opts.ContinueOnFailure
}

// poisoned reports whether any of ri's strict-edge producers reached a
// terminal Failed state, meaning ri's ingredient was never rebuilt and
// ri can never be legitimately run.
func (w *Walker) poisoned(ri int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, producer := range w.producers[ri] {
		if st := w.state[producer]; st.terminal() && st == Failed {
			return true
		}
	}
	return false
}

func (w *Walker) setFirstErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.firstErr == nil {
		w.firstErr = err
	}
}

func (w *Walker) currentState(ri int) State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state[ri]
}

// Results reports, for every recipe node's primary target, the state
// the walk left it in. Safe to call once Walk has returned.
func (w *Walker) Results() map[string]State {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]State, len(w.state))
	for ri, st := range w.state {
		node := w.g.Recipes[ri]
		if len(node.Targets) == 0 {
			continue
		}
		out[w.g.Files[node.Targets[0]].Name] = st
	}
	return out
}

func (w *Walker) finish(ri int, st State) {
	w.mu.Lock()
	w.state[ri] = st
	w.mu.Unlock()
}

// finishTimed records a recipe node's terminal state and reports it,
// along with the body-evaluation duration, through Options.OnRecipeDone.
func (w *Walker) finishTimed(ri int, st State, d time.Duration) {
	w.finish(ri, st)
	if w.opts.OnRecipeDone == nil {
		return
	}
	node := w.g.Recipes[ri]
	if len(node.Targets) == 0 {
		return
	}
	w.opts.OnRecipeDone(w.g.Files[node.Targets[0]].Name, st, d)
}

// runOne evaluates one recipe node's up-to-date decision and, if
// stale, runs its body through the Runner, all under this node's
// single-thread and host-affinity gates.
func (w *Walker) runOne(ctx context.Context, ri int) {
	node := w.g.Recipes[ri]
	w.finish(ri, Running)
	start := time.Now()
	finish := func(st State) { w.finishTimed(ri, st, time.Since(start)) }

	release := w.acquireGates(node)
	defer release()

	upToDate := false
	if !w.opts.Force {
		var err error
		upToDate, err = UpToDate(w.g, node, w.stats, w.fp)
		if err != nil {
			w.setFirstErr(err)
			finish(Failed)
			return
		}
	}

	younger := w.youngerIngredients(node)

	if upToDate {
		if node.Recipe.UpToDate != nil {
			execCtx := w.g.RecipeExecContext(ctx, node, younger)
			vm.Run(node.Recipe.UpToDate, execCtx)
		}
		finish(DoneUpToDate)
		return
	}

	execCtx := w.g.RecipeExecContext(ctx, node, younger)
	res := vm.Run(node.Recipe.OutOfDate, execCtx)
	if res.Status != vm.StatusSuccess {
		w.setFirstErr(cookerr.New(cookerr.KindSemantic, "recipe body for %q: %v", w.g.Files[node.Targets[0]].Name, res.Err))
		finish(Failed)
		return
	}

	commands := res.Value.AsStrings()
	if w.run != nil {
		if err := w.run.Run(ctx, node, commands); err != nil {
			w.setFirstErr(err)
			finish(Failed)
			return
		}
	}

	for _, fi := range node.Targets {
		w.stats.Clear(w.g.Files[fi].Name)
	}
	if err := RecordBuilt(w.g, node, w.fp); err != nil {
		w.setFirstErr(err)
	}
	// Writes back dirty fingerprint subdirs once the store's sync
	// interval has passed; write errors do not fail the build.
	_ = w.fp.Sync(false)
	finish(DoneRebuilt)
}

// youngerIngredients lists every ingredient, of any edge type, whose
// mtime is newer than the oldest target's, for binding to the recipe body's
// $younger auto-variable.
func (w *Walker) youngerIngredients(node *graph.RecipeNode) []string {
	if len(node.Targets) == 0 {
		return nil
	}
	oldest := w.stats.ModTime(w.g.Files[node.Targets[0]].Name)
	for _, fi := range node.Targets[1:] {
		if mt := w.stats.ModTime(w.g.Files[fi].Name); mt.Before(oldest) {
			oldest = mt
		}
	}
	var younger []string
	for _, e := range node.Edges {
		f := w.g.Files[e.File]
		if w.stats.ModTime(f.Name).After(oldest) {
			younger = append(younger, f.Name)
		}
	}
	return younger
}

// acquireGates takes this node's single-thread lock (if any) and one
// slot from its host-affinity pool (if any), returning a func that
// releases both.
func (w *Walker) acquireGates(node *graph.RecipeNode) func() {
	var unlock func()
	if node.SingleThreadTag != "" {
		w.mu.Lock()
		lock, ok := w.singleLock[node.SingleThreadTag]
		if !ok {
			lock = &sync.Mutex{}
			w.singleLock[node.SingleThreadTag] = lock
		}
		w.mu.Unlock()
		lock.Lock()
		unlock = lock.Unlock
	}

	var releaseSlot func()
	if node.HostTag != "" {
		if slots, ok := w.hostSlots[node.HostTag]; ok {
			slots <- struct{}{}
			releaseSlot = func() { <-slots }
		}
	}

	return func() {
		if releaseSlot != nil {
			releaseSlot()
		}
		if unlock != nil {
			unlock()
		}
	}
}
