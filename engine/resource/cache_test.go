package resource

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu/gputest"
)

type counted struct {
	creates int
	updates int
}

func countingUpload(n *counted) UploadFunc[int] {
	return func(ctx gpu.Context, prev int, exists bool) (int, error) {
		if exists {
			n.updates++
			return prev, nil
		}
		n.creates++
		return n.creates, nil
	}
}

func TestCacheCreatesOncePerContext(t *testing.T) {
	cache := NewCache[int]("test", nil)
	res := NewTracker()
	a, b := gputest.New(), gputest.New()

	var n counted
	up := countingUpload(&n)

	ia, err := cache.Resolve(a, res, up)
	if err != nil {
		t.Fatalf("resolve a: %v", err)
	}
	if again, _ := cache.Resolve(a, res, up); again != ia {
		t.Fatalf("second resolve returned %d, want cached %d", again, ia)
	}
	ib, err := cache.Resolve(b, res, up)
	if err != nil {
		t.Fatalf("resolve b: %v", err)
	}
	if ia == ib {
		t.Fatalf("contexts share instance %d", ia)
	}
	if n.creates != 2 || n.updates != 0 {
		t.Fatalf("creates=%d updates=%d, want 2/0", n.creates, n.updates)
	}
	if cache.Len() != 2 {
		t.Fatalf("Len = %d, want 2", cache.Len())
	}
}

func TestCacheDirtyUpdatesOnlyResolvedContext(t *testing.T) {
	cache := NewCache[int]("test", nil)
	res := NewTracker()
	a, b := gputest.New(), gputest.New()
	var n counted
	up := countingUpload(&n)

	cache.Resolve(a, res, up)
	cache.Resolve(b, res, up)

	res.MarkDirty()
	if _, err := cache.Resolve(a, res, up); err != nil {
		t.Fatalf("resolve a: %v", err)
	}
	infoA, _ := cache.Info(res.ID(), a.ID())
	infoB, _ := cache.Info(res.ID(), b.ID())
	if infoA.Uploads != 2 {
		t.Errorf("context a uploads = %d, want 2", infoA.Uploads)
	}
	if infoB.Uploads != 1 {
		t.Errorf("context b uploads = %d, want 1", infoB.Uploads)
	}
	if infoA.Version != res.Version() || infoB.Version == res.Version() {
		t.Errorf("versions a=%d b=%d resource=%d", infoA.Version, infoB.Version, res.Version())
	}
	if n.updates != 1 {
		t.Errorf("updates = %d, want 1 (in place)", n.updates)
	}
}

func TestCacheInvalidateSingleContext(t *testing.T) {
	cache := NewCache[int]("test", nil)
	res := NewTracker()
	a, b := gputest.New(), gputest.New()
	var n counted
	up := countingUpload(&n)
	cache.Resolve(a, res, up)
	cache.Resolve(b, res, up)

	cache.Invalidate(res.ID(), b.ID())
	cache.Resolve(a, res, up)
	cache.Resolve(b, res, up)

	if n.updates != 1 {
		t.Fatalf("updates = %d, want 1 (only context b)", n.updates)
	}
	if info, _ := cache.Info(res.ID(), b.ID()); info.Dirty {
		t.Fatal("dirty flag not cleared after re-upload")
	}
}

func TestCacheFailureIsSticky(t *testing.T) {
	cache := NewCache[int]("test", nil)
	res := NewTracker()
	ctx := gputest.New()
	boom := errors.New("boom")
	calls := 0
	fail := func(gpu.Context, int, bool) (int, error) {
		calls++
		return 0, boom
	}

	if _, err := cache.Resolve(ctx, res, fail); !errors.Is(err, boom) {
		t.Fatalf("first resolve err = %v, want boom", err)
	}
	_, err := cache.Resolve(ctx, res, fail)
	if !errors.Is(err, gpu.ErrResourceFailed) || !errors.Is(err, boom) {
		t.Fatalf("second resolve err = %v, want ErrResourceFailed wrapping boom", err)
	}
	if calls != 1 {
		t.Fatalf("upload called %d times, want 1", calls)
	}
	if cache.Failed(res.ID(), ctx.ID()) == nil {
		t.Fatal("Failed returned nil")
	}
	if _, ok := cache.Lookup(res.ID(), ctx.ID()); ok {
		t.Fatal("Lookup returned a failed entry")
	}
}

func TestCacheReleaseContextAndForget(t *testing.T) {
	released := map[gpu.ContextID][]int{}
	cache := NewCache[int]("test", func(ctx gpu.Context, inst int) {
		released[ctx.ID()] = append(released[ctx.ID()], inst)
	})
	r1, r2 := NewTracker(), NewTracker()
	a, b := gputest.New(), gputest.New()
	var n counted
	up := countingUpload(&n)
	cache.Resolve(a, r1, up)
	cache.Resolve(a, r2, up)
	cache.Resolve(b, r1, up)

	cache.ReleaseContext(a.ID())
	if len(released[a.ID()]) != 2 {
		t.Fatalf("released %v for context a, want 2 instances", released[a.ID()])
	}
	if cache.Len() != 1 {
		t.Fatalf("Len after ReleaseContext = %d, want 1", cache.Len())
	}

	cache.Forget(r1.ID())
	if len(released[b.ID()]) != 1 || cache.Len() != 0 {
		t.Fatalf("Forget left %d entries, released %v", cache.Len(), released[b.ID()])
	}
}

func TestCacheFailedReuploadReleasesPreviousOnce(t *testing.T) {
	released := map[int]int{}
	cache := NewCache[int]("test", func(_ gpu.Context, inst int) { released[inst]++ })
	res := NewTracker()
	ctx := gputest.New()
	boom := errors.New("boom")

	first, err := cache.Resolve(ctx, res, func(gpu.Context, int, bool) (int, error) { return 1, nil })
	if err != nil {
		t.Fatal(err)
	}
	res.MarkDirty()
	_, err = cache.Resolve(ctx, res, func(_ gpu.Context, prev int, exists bool) (int, error) {
		if !exists || prev != first {
			t.Errorf("re-upload got prev=%d exists=%v", prev, exists)
		}
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(released) != 0 {
		t.Fatalf("released %v before Forget", released)
	}

	cache.Forget(res.ID())
	cache.ReleaseContext(ctx.ID())
	if released[first] != 1 || len(released) != 1 {
		t.Errorf("released = %v, want instance %d exactly once", released, first)
	}
}
