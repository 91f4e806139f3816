package notify

import (
	"context"
	"testing"

	frontpage "github.com/eugener/frontpage/internal"
)

func TestFeedNewestFirst(t *testing.T) {
	t.Parallel()

	f := NewFeed(10)
	ctx := context.Background()
	f.Show(ctx, frontpage.Notification{Tag: "a", Title: "first"})
	f.Show(ctx, frontpage.Notification{Tag: "b", Title: "second"})

	got := f.List()
	if len(got) != 2 || got[0].Tag != "b" || got[1].Tag != "a" {
		t.Errorf("list = %+v, want b then a", got)
	}
}

func TestFeedReplacesSameTag(t *testing.T) {
	t.Parallel()

	f := NewFeed(10)
	ctx := context.Background()
	f.Show(ctx, frontpage.Notification{Tag: "disk", Title: "80%"})
	f.Show(ctx, frontpage.Notification{Tag: "cpu", Title: "hot"})
	f.Show(ctx, frontpage.Notification{Tag: "disk", Title: "95%"})

	got := f.List()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Tag != "disk" || got[0].Title != "95%" {
		t.Errorf("head = %+v, want replaced disk alert", got[0])
	}
}

func TestFeedCapacity(t *testing.T) {
	t.Parallel()

	f := NewFeed(2)
	ctx := context.Background()
	for _, tag := range []string{"a", "b", "c"} {
		f.Show(ctx, frontpage.Notification{Tag: tag})
	}
	got := f.List()
	if len(got) != 2 || got[0].Tag != "c" || got[1].Tag != "b" {
		t.Errorf("list = %+v, want c, b", got)
	}
}

func TestFeedClose(t *testing.T) {
	t.Parallel()

	f := NewFeed(0)
	f.Show(context.Background(), frontpage.Notification{Tag: "a"})
	if !f.Close("a") {
		t.Error("Close(a) = false, want true")
	}
	if f.Close("a") {
		t.Error("second Close(a) = true, want false")
	}
	if len(f.List()) != 0 {
		t.Error("feed should be empty")
	}
}

func TestFeedListIsCopy(t *testing.T) {
	t.Parallel()

	f := NewFeed(5)
	f.Show(context.Background(), frontpage.Notification{Tag: "a", Title: "x"})
	got := f.List()
	got[0].Title = "mutated"
	if f.List()[0].Title != "x" {
		t.Error("List must return a copy")
	}
}
