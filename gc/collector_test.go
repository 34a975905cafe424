package gc

import (
	"testing"

	"github.com/ember-lang/ember/value"
)

// fakeObj is a minimal Traceable used to exercise the collector without
// pulling in xtable/frame (spec §4.4 propagate/sweep, tested in
// isolation per the package doc's "never imports the concrete object
// packages" stance).
type fakeObj struct {
	value.Header
	refs      []value.Collectable
	destroyed bool
}

func (f *fakeObj) GCTrace(c *Collector) {
	for _, r := range f.refs {
		c.MarkObj(r)
	}
}

func (f *fakeObj) Destroy() { f.destroyed = true }

func newFake(c *Collector) *fakeObj {
	o, _ := c.Allocate(16, func() value.Collectable { return &fakeObj{} })
	return o.(*fakeObj)
}

func TestFullGCReclaimsUnreachable(t *testing.T) {
	c := New(DefaultConfig(), ModeIncremental, nil)
	garbage := newFake(c)
	c.FullGC()
	if !garbage.destroyed {
		t.Fatalf("unreachable object should have been destroyed")
	}
}

func TestFullGCKeepsRootedObject(t *testing.T) {
	c := New(DefaultConfig(), ModeIncremental, nil)
	root := newFake(c)
	c.AddRoot(root)
	c.FullGC()
	if root.destroyed {
		t.Fatalf("rooted object must survive a full collection")
	}
}

func TestFullGCKeepsTransitivelyReachable(t *testing.T) {
	c := New(DefaultConfig(), ModeIncremental, nil)
	parent := newFake(c)
	c.AddRoot(parent)
	child := newFake(c)
	parent.refs = []value.Collectable{child}
	c.FullGC()
	if parent.destroyed || child.destroyed {
		t.Fatalf("root and its transitive reference must both survive")
	}
}

func TestAnchorKeepsObjectAliveWithoutRoot(t *testing.T) {
	c := New(DefaultConfig(), ModeIncremental, nil)
	o := newFake(c)
	c.Anchor(o)
	c.FullGC()
	if o.destroyed {
		t.Fatalf("anchored object must survive collection")
	}
	c.Unanchor(o)
	c.FullGC()
	if !o.destroyed {
		t.Fatalf("object should be collected once unanchored")
	}
}

func TestDebtAccountingAccumulatesAndResets(t *testing.T) {
	c := New(DefaultConfig(), ModeIncremental, nil)
	newFake(c)
	if c.TotalBytes() == 0 {
		t.Fatalf("allocation should have charged total bytes")
	}
	c.FullGC()
	if c.Debt() > 0 {
		t.Fatalf("debt should not remain positive after a full cycle, got %d", c.Debt())
	}
}
