package dbx

import (
	"context"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quintans/faults"
	tk "github.com/quintans/toolkit"
)

var _ ConnectionSource = (*LeakTracker)(nil)

type Lease struct {
	ID       string
	Acquired time.Time
	Stack    string
}

// LeakTracker decorates a ConnectionSource, remembering where every
// outstanding connection was acquired.
type LeakTracker struct {
	source ConnectionSource
	log    Logger

	mu     sync.Mutex
	leases map[Connection]Lease
}

func NewLeakTracker(source ConnectionSource, log Logger) *LeakTracker {
	if log == nil {
		log = NopLogger{}
	}
	return &LeakTracker{
		source: source,
		log:    log,
		leases: make(map[Connection]Lease),
	}
}

func (t *LeakTracker) Acquire(ctx context.Context) (Connection, error) {
	conn, err := t.source.Acquire(ctx)
	if err != nil {
		return nil, faults.Wrap(err)
	}

	lease := Lease{
		ID:       uuid.New().String(),
		Acquired: time.Now(),
		Stack:    string(debug.Stack()),
	}
	t.mu.Lock()
	t.leases[conn] = lease
	t.mu.Unlock()
	logger.Debugf("connection lease %s acquired", lease.ID)
	return conn, nil
}

func (t *LeakTracker) Release(conn Connection) error {
	t.mu.Lock()
	lease, ok := t.leases[conn]
	delete(t.leases, conn)
	t.mu.Unlock()

	if !ok {
		t.log.Warn("Releasing a connection that was not acquired from this source", nil)
	} else {
		logger.Debugf("connection lease %s released", lease.ID)
	}
	return faults.Wrap(t.source.Release(conn))
}

// Outstanding lists the leases not yet released, oldest first.
func (t *LeakTracker) Outstanding() []Lease {
	t.mu.Lock()
	leases := make([]Lease, 0, len(t.leases))
	for _, l := range t.leases {
		leases = append(leases, l)
	}
	t.mu.Unlock()

	sort.Slice(leases, func(i, j int) bool {
		return leases[i].Acquired.Before(leases[j].Acquired)
	})
	return leases
}

// Report logs a warning for every outstanding lease and returns how many there were.
func (t *LeakTracker) Report() int {
	leases := t.Outstanding()
	for _, l := range leases {
		msg := tk.NewStrBuffer()
		msg.Add("Connection ", l.ID, " acquired at ", l.Acquired.Format(time.RFC3339), " was never released\n", l.Stack)
		t.log.Warn(msg.String(), nil)
	}
	return len(leases)
}
