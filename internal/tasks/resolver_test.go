package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/jellytodo/internal/shared"
	tu "github.com/desertthunder/jellytodo/internal/testing"
)

const testProject = "p1"

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("Lookup", func(t *testing.T) {
		t.Run("Found", func(t *testing.T) {
			svc := tu.NewFakeTaskService()
			existing := svc.AddGrouping(testProject, "Show A")

			r := NewResolver(svc, NewKeyedMutex(), testProject)
			g, found, err := r.Lookup(ctx, "Show A")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !found || g.ID != existing.ID {
				t.Errorf("expected grouping %s, got %+v (found=%v)", existing.ID, g, found)
			}
		})

		t.Run("Not Found Does Not Create", func(t *testing.T) {
			svc := tu.NewFakeTaskService()
			r := NewResolver(svc, NewKeyedMutex(), testProject)

			_, found, err := r.Lookup(ctx, "Show A")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if found {
				t.Error("expected grouping not to be found")
			}
			if svc.CallCount("CreateGrouping") != 0 {
				t.Error("lookup must not create groupings")
			}
		})

		t.Run("Caches Within Pass", func(t *testing.T) {
			svc := tu.NewFakeTaskService()
			svc.AddGrouping(testProject, "Show A")
			r := NewResolver(svc, NewKeyedMutex(), testProject)

			r.Lookup(ctx, "Show A")
			r.Lookup(ctx, "Show B")
			if svc.CallCount("ListGroupings") != 1 {
				t.Errorf("expected one fetch per pass, got %d", svc.CallCount("ListGroupings"))
			}
		})

		t.Run("Trims Names", func(t *testing.T) {
			svc := tu.NewFakeTaskService()
			svc.AddGrouping(testProject, "Show A ")
			r := NewResolver(svc, NewKeyedMutex(), testProject)

			if _, found, _ := r.Lookup(ctx, "  Show A"); !found {
				t.Error("expected trimmed names to match")
			}
		})

		t.Run("Case Sensitive", func(t *testing.T) {
			svc := tu.NewFakeTaskService()
			svc.AddGrouping(testProject, "Show A")
			r := NewResolver(svc, NewKeyedMutex(), testProject)

			if _, found, _ := r.Lookup(ctx, "show a"); found {
				t.Error("expected case-sensitive match")
			}
		})

		t.Run("Empty Name", func(t *testing.T) {
			r := NewResolver(tu.NewFakeTaskService(), NewKeyedMutex(), testProject)
			if _, _, err := r.Lookup(ctx, "  "); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})

		t.Run("Service Error", func(t *testing.T) {
			svc := tu.NewFakeTaskService()
			svc.ListGroupingsErr = shared.ErrRemoteUnavailable
			r := NewResolver(svc, NewKeyedMutex(), testProject)

			if _, _, err := r.Lookup(ctx, "Show A"); !errors.Is(err, shared.ErrRemoteUnavailable) {
				t.Errorf("expected ErrRemoteUnavailable, got %v", err)
			}
		})
	})

	t.Run("Resolve", func(t *testing.T) {
		t.Run("Creates Missing Grouping Once", func(t *testing.T) {
			svc := tu.NewFakeTaskService()
			r := NewResolver(svc, NewKeyedMutex(), testProject)

			g, created, err := r.Resolve(ctx, "Show A")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !created {
				t.Error("expected grouping to be created")
			}
			if g.ProjectID != testProject || g.Name != "Show A" {
				t.Errorf("unexpected grouping %+v", g)
			}

			again, created, err := r.Resolve(ctx, "Show A")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if created || again.ID != g.ID {
				t.Errorf("expected cached grouping %s, got %+v (created=%v)", g.ID, again, created)
			}
			if svc.CallCount("CreateGrouping") != 1 {
				t.Errorf("expected one create, got %d", svc.CallCount("CreateGrouping"))
			}
		})

		t.Run("Reuses Existing Grouping", func(t *testing.T) {
			svc := tu.NewFakeTaskService()
			existing := svc.AddGrouping(testProject, "Show A")
			r := NewResolver(svc, NewKeyedMutex(), testProject)

			g, created, err := r.Resolve(ctx, "Show A")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if created || g.ID != existing.ID {
				t.Errorf("expected existing grouping, got %+v (created=%v)", g, created)
			}
		})

		t.Run("Refetches Stale Cache Before Creating", func(t *testing.T) {
			svc := tu.NewFakeTaskService()
			locks := NewKeyedMutex()

			first := NewResolver(svc, locks, testProject)
			if _, found, _ := first.Lookup(ctx, "Show A"); found {
				t.Fatal("grouping should not exist yet")
			}

			second := NewResolver(svc, locks, testProject)
			created, _, err := second.Resolve(ctx, "Show A")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			g, wasCreated, err := first.Resolve(ctx, "Show A")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if wasCreated || g.ID != created.ID {
				t.Errorf("expected grouping %s created by another pass, got %+v (created=%v)", created.ID, g, wasCreated)
			}
			if n := len(svc.Groupings(testProject)); n != 1 {
				t.Errorf("expected 1 grouping, got %d", n)
			}
		})

		t.Run("Create Error", func(t *testing.T) {
			svc := tu.NewFakeTaskService()
			svc.CreateGroupingErr = shared.ErrAuthFailed
			r := NewResolver(svc, NewKeyedMutex(), testProject)

			if _, _, err := r.Resolve(ctx, "Show A"); !errors.Is(err, shared.ErrAuthFailed) {
				t.Errorf("expected ErrAuthFailed, got %v", err)
			}
		})

		t.Run("Concurrent Passes Create One Grouping", func(t *testing.T) {
			svc := tu.NewFakeTaskService()
			svc.CreateGroupingDelay = 2 * time.Millisecond
			locks := NewKeyedMutex()

			var wg sync.WaitGroup
			ids := make([]string, 20)
			for i := range ids {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					g, _, err := NewResolver(svc, locks, testProject).Resolve(ctx, "Show A")
					if err != nil {
						t.Errorf("resolve failed: %v", err)
						return
					}
					ids[i] = g.ID
				}(i)
			}
			wg.Wait()

			if n := len(svc.Groupings(testProject)); n != 1 {
				t.Fatalf("expected exactly 1 grouping, got %d", n)
			}
			for _, id := range ids {
				if id != ids[0] {
					t.Errorf("passes resolved different groupings: %v", ids)
					break
				}
			}
		})
	})
}
