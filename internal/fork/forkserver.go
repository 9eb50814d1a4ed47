// Package fork implements the fork-server pattern (§4.8): a base thread is
// serialized once, then a fresh child is reconstructed from that frozen
// snapshot for every spawn, instead of re-running whichever setup code
// built the base state. A running child can later be checkpointed back
// into a byte string the same way, e.g. to migrate it or persist it to
// disk between ticks.
package fork

import (
	"fmt"
	"sync"

	"github.com/christophe-duc/lslengine/internal/ares"
	"github.com/christophe-duc/lslengine/internal/uuidkey"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/christophe-duc/lslengine/internal/vmthread"
	"github.com/sirupsen/logrus"
)

// ForkServer anchors one base thread and the permanents tables every fork
// and checkpoint against it shares, so that code already loaded into both
// sides of a fork never has to be re-serialized.
type ForkServer struct {
	mu sync.Mutex

	log *logrus.Entry

	base     *vmthread.Thread
	baseData []byte

	perms        *ares.PermanentsTable
	unperms      *ares.UnpermanentsTable
	protoPerms   *ares.ProtoPermanentsTable
	protoUnperms *ares.ProtoUnpermanentsTable
	uuids        *uuidkey.Table
}

// NewForkServer walks every prototype reachable from base, registers each
// under a "proto/<source>/<bytecodeid>" permanent name, anchors base by
// serializing it once, and returns a server ready to Fork children from
// that snapshot.
func NewForkServer(base *vmthread.Thread, logger *logrus.Entry) (*ForkServer, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	protoPerms := ares.NewProtoPermanentsTable()
	protoUnperms := ares.NewProtoUnpermanentsTable()
	for _, p := range collectProtos(base) {
		key := protoPermKey(p)
		protoPerms.Register(p, key)
		protoUnperms.Register(key, p)
	}

	fs := &ForkServer{
		log:          logger,
		base:         base,
		perms:        ares.NewPermanentsTable(),
		unperms:      ares.NewUnpermanentsTable(),
		protoPerms:   protoPerms,
		protoUnperms: protoUnperms,
		uuids:        uuidkey.New(),
	}

	data, err := ares.Persist(value.Value{Tag: value.TThread, Thread: base}, fs.perms, fs.options())
	if err != nil {
		return nil, fmt.Errorf("fork: persisting base thread: %w", err)
	}
	fs.baseData = data

	fs.log.WithField("protos", len(collectProtos(base))).Debug("fork server anchored base thread")
	return fs, nil
}

func (fs *ForkServer) options() ares.Options {
	return ares.Options{
		UUIDs:             fs.uuids,
		ProtoPermanents:   fs.protoPerms,
		ProtoUnpermanents: fs.protoUnperms,
	}
}

// Fork reconstructs a fresh thread from the anchored base snapshot, tagged
// with memCategory for the host's memory accounting.
func (fs *ForkServer) Fork(memCategory int) (*vmthread.Thread, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var child *vmthread.Thread
	err := withMemCategory(memCategory, func() error {
		v, err := ares.Unpersist(fs.baseData, fs.unperms, fs.options())
		if err != nil {
			return fmt.Errorf("fork: unpersisting base snapshot: %w", err)
		}
		th, ok := v.Thread.(*vmthread.Thread)
		if !ok {
			return fmt.Errorf("fork: base snapshot did not decode to a thread")
		}
		th.MemCat = memCategory
		child = th
		return nil
	})
	if err != nil {
		return nil, err
	}
	fs.log.WithField("memCategory", memCategory).Debug("forked child thread")
	return child, nil
}

// Checkpoint re-serializes a running child against the same permanents
// tables the base snapshot was built with, so prototypes the child shares
// with the base still collapse to short names rather than full bodies.
func (fs *ForkServer) Checkpoint(child *vmthread.Thread) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var data []byte
	err := withMemCategory(child.MemCat, func() error {
		var err error
		data, err = ares.Persist(value.Value{Tag: value.TThread, Thread: child}, fs.perms, fs.options())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fork: checkpointing child thread: %w", err)
	}
	return data, nil
}

// withMemCategory wraps fn with enter/leave bookkeeping for a memory
// category, the same shape as a goroutine body run under
// pkg/tasks.TaskManager: the accounting step runs before fn and its
// inverse runs after, regardless of how fn returns.
func withMemCategory(cat int, fn func() error) error {
	enterMemCategory(cat)
	defer leaveMemCategory(cat)
	return fn()
}
