package relay

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/tetherctl/internal/logging"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// pendingCall is one in-flight outbound request awaiting its reply frame.
type pendingCall struct {
	id    string
	tool  string
	epoch uint64
	done  chan callResult
	timer *time.Timer
}

type callResult struct {
	data json.RawMessage
	err  error
}

// Correlator owns the pending-call table and request id minting. Every
// settlement path funnels through settle, so a call completes exactly once
// and late replies are discarded.
type Correlator struct {
	log zerolog.Logger

	token string
	seq   atomic.Uint64

	mu      sync.Mutex
	pending map[string]*pendingCall
}

func NewCorrelator() *Correlator {
	return &Correlator{
		log:     logging.Component("correlator"),
		token:   newProcessToken(),
		pending: make(map[string]*pendingCall),
	}
}

// NextRequestID mints a process-unique request id. The random token keeps
// ids from colliding across relay processes sharing one listener.
func (c *Correlator) NextRequestID() string {
	return fmt.Sprintf("req.%s.%d", c.token, c.seq.Add(1))
}

func newProcessToken() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("p%d", os.Getpid())
	}
	return hex.EncodeToString(buf)
}

// register adds one pending entry tagged with its session epoch and arms
// the per-call deadline. The timer is assigned under the table lock: a
// settlement racing the insert still observes it.
func (c *Correlator) register(id string, tool string, epoch uint64, timeout time.Duration) *pendingCall {
	call := &pendingCall{
		id:    id,
		tool:  tool,
		epoch: epoch,
		done:  make(chan callResult, 1),
	}
	c.mu.Lock()
	c.pending[id] = call
	call.timer = time.AfterFunc(timeout, func() {
		c.settle(id, callResult{err: fmt.Errorf("%w: tool=%q after %s", ErrTimeoutExceeded, tool, timeout)})
	})
	c.mu.Unlock()
	return call
}

// settle completes one pending call at most once. Removal from the table is
// the settle-once guard: the second settlement for an id finds nothing.
func (c *Correlator) settle(id string, res callResult) bool {
	c.mu.Lock()
	call, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	if call.timer != nil {
		call.timer.Stop()
	}
	call.done <- res
	return true
}

// Resolve settles a pending call with reply data. Unknown or already
// settled ids are discarded.
func (c *Correlator) Resolve(id string, data json.RawMessage) {
	if !c.settle(id, callResult{data: data}) {
		c.log.Debug().Msgf("correlator.Resolve discard request_id=%q", id)
	}
}

// Reject settles a pending call with a remote failure message.
func (c *Correlator) Reject(id string, message string) {
	if !c.settle(id, callResult{err: fmt.Errorf("%w: %s", ErrRemote, message)}) {
		c.log.Debug().Msgf("correlator.Reject discard request_id=%q", id)
	}
}

// FailEpoch rejects every pending call registered against one session
// epoch. Calls on later epochs stay pending.
func (c *Correlator) FailEpoch(epoch uint64, kind error) {
	c.failMatching(kind, func(call *pendingCall) bool { return call.epoch == epoch })
}

// FailAll rejects every pending call, regardless of epoch.
func (c *Correlator) FailAll(kind error) {
	c.failMatching(kind, func(*pendingCall) bool { return true })
}

func (c *Correlator) failMatching(kind error, match func(*pendingCall) bool) {
	c.mu.Lock()
	var batch []*pendingCall
	for id, call := range c.pending {
		if match(call) {
			delete(c.pending, id)
			batch = append(batch, call)
		}
	}
	c.mu.Unlock()
	for _, call := range batch {
		if call.timer != nil {
			call.timer.Stop()
		}
		call.done <- callResult{err: fmt.Errorf("%w: tool=%q", kind, call.tool)}
	}
}

// PendingCount reports the number of in-flight calls.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
