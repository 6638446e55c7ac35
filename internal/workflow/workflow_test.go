// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/questguild/guild-go/internal/cache"
	"github.com/questguild/guild-go/internal/docstore"
	"github.com/questguild/guild-go/internal/identity"
	"github.com/questguild/guild-go/internal/model"
	"github.com/questguild/guild-go/internal/profile"
	"github.com/questguild/guild-go/internal/store"
)

type fixture struct {
	mgr      *Manager
	profiles *profile.Service
	docs     *docstore.Store
	clock    *fakeClock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := store.NewDB(t.TempDir() + "/guild.db")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	docs := docstore.New(store.NewKV(db))
	mem := cache.NewMemory(time.Minute, 100)
	t.Cleanup(func() { _ = mem.Close() })
	profiles := profile.NewService(docs, mem)

	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	mgr := NewManager(docs, profiles, func(email string) bool {
		return strings.EqualFold(email, "root@example.com")
	})
	mgr.now = clock.now

	return &fixture{mgr: mgr, profiles: profiles, docs: docs, clock: clock}
}

func member() *model.PublicUser {
	return &model.PublicUser{UID: "u1", Email: "alice@example.com", DisplayName: "Alice"}
}

func superadmin() *model.PublicUser {
	return &model.PublicUser{UID: "root", Email: "root@example.com", DisplayName: "Root"}
}

func TestRequestSubmits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome, err := f.mgr.Request(ctx, member())
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if outcome != OutcomeSubmitted {
		t.Fatalf("outcome = %v, want OutcomeSubmitted", outcome)
	}

	role, err := f.profiles.Role(ctx, "u1")
	if err != nil {
		t.Fatalf("Role: %v", err)
	}
	if role != model.RolePendingAdmin {
		t.Errorf("role = %q, want %q", role, model.RolePendingAdmin)
	}

	fields, exists, err := f.docs.GetDocument(ctx, model.CollectionAdminRequests, "u1")
	if err != nil || !exists {
		t.Fatalf("GetDocument: exists=%v err=%v", exists, err)
	}
	var req model.AdminRequest
	if err := docstore.Decode(fields, &req); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if req.Status != model.RequestStatusPending {
		t.Errorf("status = %q, want pending", req.Status)
	}
	if req.Email != "alice@example.com" || req.DisplayName != "Alice" {
		t.Errorf("request identity = %q/%q", req.Email, req.DisplayName)
	}
	if got, want := req.ExpiresAt-req.CreatedAt, int64(24*60*60*1000); got != want {
		t.Errorf("expiry window = %dms, want %dms", got, want)
	}
}

func TestRequestWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.mgr.Request(ctx, member()); err != nil {
		t.Fatalf("first Request: %v", err)
	}
	first, _, _ := f.docs.GetDocument(ctx, model.CollectionAdminRequests, "u1")

	f.clock.advance(23 * time.Hour)
	outcome, err := f.mgr.Request(ctx, member())
	if err != nil {
		t.Fatalf("second Request: %v", err)
	}
	if outcome != OutcomeAlreadyPending {
		t.Fatalf("outcome = %v, want OutcomeAlreadyPending", outcome)
	}

	second, _, _ := f.docs.GetDocument(ctx, model.CollectionAdminRequests, "u1")
	if first["createdAt"] != second["createdAt"] {
		t.Error("pending request must not be replaced before it expires")
	}
}

func TestRequestAfterExpiryReplaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.mgr.Request(ctx, member()); err != nil {
		t.Fatalf("first Request: %v", err)
	}

	f.clock.advance(25 * time.Hour)
	outcome, err := f.mgr.Request(ctx, member())
	if err != nil {
		t.Fatalf("second Request: %v", err)
	}
	if outcome != OutcomeSubmitted {
		t.Fatalf("outcome = %v, an expired request should be replaceable", outcome)
	}

	status, err := f.mgr.StatusFor(ctx, "u1")
	if err != nil {
		t.Fatalf("StatusFor: %v", err)
	}
	if status.State != StatePending {
		t.Errorf("state = %v, want StatePending after resubmission", status.State)
	}
}

func TestRequestByAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.profiles.SetRole(ctx, "u1", model.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	outcome, err := f.mgr.Request(ctx, member())
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if outcome != OutcomeAlreadyAdmin {
		t.Errorf("outcome = %v, want OutcomeAlreadyAdmin", outcome)
	}
}

func TestRequestBySuperadmin(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.mgr.Request(context.Background(), superadmin())
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if outcome != OutcomeAlreadyAdmin {
		t.Errorf("outcome = %v, the superadmin never needs a request", outcome)
	}
}

func TestRequestWithoutUser(t *testing.T) {
	f := newFixture(t)

	if _, err := f.mgr.Request(context.Background(), nil); !errors.Is(err, identity.ErrNoActiveUser) {
		t.Errorf("err = %v, want ErrNoActiveUser", err)
	}
}

func TestApproveGrantsAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.mgr.Request(ctx, member()); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if err := f.mgr.Approve(ctx, superadmin(), "u1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	role, _ := f.profiles.Role(ctx, "u1")
	if role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", role)
	}
	status, _ := f.mgr.StatusFor(ctx, "u1")
	if status.State != StateApproved {
		t.Errorf("state = %v, want StateApproved", status.State)
	}
}

func TestApprovePastExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.mgr.Request(ctx, member()); err != nil {
		t.Fatalf("Request: %v", err)
	}

	// The decision stands even 30 hours in, well past the 24h window.
	f.clock.advance(30 * time.Hour)
	if err := f.mgr.Approve(ctx, superadmin(), "u1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	role, _ := f.profiles.Role(ctx, "u1")
	if role != model.RoleAdmin {
		t.Errorf("role = %q, an expired request is still approvable", role)
	}
}

func TestApproveByNonSuperadmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.mgr.Request(ctx, member()); err != nil {
		t.Fatalf("Request: %v", err)
	}
	err := f.mgr.Approve(ctx, member(), "u1")
	if !errors.Is(err, ErrNotSuperadmin) {
		t.Fatalf("err = %v, want ErrNotSuperadmin", err)
	}

	role, _ := f.profiles.Role(ctx, "u1")
	if role == model.RoleAdmin {
		t.Error("a denied authorization must not change roles")
	}
}

func TestDenyResetsRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.mgr.Request(ctx, member()); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if err := f.mgr.Deny(ctx, superadmin(), "u1"); err != nil {
		t.Fatalf("Deny: %v", err)
	}

	role, _ := f.profiles.Role(ctx, "u1")
	if role != model.RoleUser {
		t.Errorf("role = %q, deny must reset to the base role", role)
	}
	status, _ := f.mgr.StatusFor(ctx, "u1")
	if status.State != StateDenied {
		t.Errorf("state = %v, want StateDenied", status.State)
	}
}

func TestDenyResetsAdminRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.mgr.Request(ctx, member()); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if err := f.mgr.Approve(ctx, superadmin(), "u1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := f.mgr.Deny(ctx, superadmin(), "u1"); err != nil {
		t.Fatalf("Deny: %v", err)
	}

	role, _ := f.profiles.Role(ctx, "u1")
	if role != model.RoleUser {
		t.Errorf("role = %q, deny resets even an admin", role)
	}
}

func TestStatusForStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, err := f.mgr.StatusFor(ctx, "u1")
	if err != nil {
		t.Fatalf("StatusFor: %v", err)
	}
	if status.State != StateNoRequest {
		t.Fatalf("state = %v, want StateNoRequest", status.State)
	}

	if _, err := f.mgr.Request(ctx, member()); err != nil {
		t.Fatalf("Request: %v", err)
	}

	f.clock.advance(90 * time.Minute)
	status, _ = f.mgr.StatusFor(ctx, "u1")
	if status.State != StatePending {
		t.Fatalf("state = %v, want StatePending", status.State)
	}
	// 22.5h remain; hours left rounds up.
	if status.HoursLeft != 23 {
		t.Errorf("hoursLeft = %d, want 23", status.HoursLeft)
	}
	if !strings.Contains(status.Message(), "23h") {
		t.Errorf("message = %q, want remaining hours", status.Message())
	}

	f.clock.advance(23 * time.Hour)
	status, _ = f.mgr.StatusFor(ctx, "u1")
	if status.State != StateExpired {
		t.Errorf("state = %v, want StateExpired", status.State)
	}
}

func TestPendingListsOldestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.mgr.Request(ctx, member()); err != nil {
		t.Fatalf("Request u1: %v", err)
	}
	f.clock.advance(time.Hour)
	bob := &model.PublicUser{UID: "u2", Email: "bob@example.com"}
	if _, err := f.mgr.Request(ctx, bob); err != nil {
		t.Fatalf("Request u2: %v", err)
	}
	if err := f.mgr.Deny(ctx, superadmin(), "u2"); err != nil {
		t.Fatalf("Deny u2: %v", err)
	}
	f.clock.advance(time.Hour)
	carol := &model.PublicUser{UID: "u3", Email: "carol@example.com"}
	if _, err := f.mgr.Request(ctx, carol); err != nil {
		t.Fatalf("Request u3: %v", err)
	}

	pending, err := f.mgr.Pending(ctx, superadmin())
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}
	if pending[0].UID != "u1" || pending[1].UID != "u3" {
		t.Errorf("order = %s,%s, want u1,u3", pending[0].UID, pending[1].UID)
	}
}

func TestPendingRequiresSuperadmin(t *testing.T) {
	f := newFixture(t)

	if _, err := f.mgr.Pending(context.Background(), member()); !errors.Is(err, ErrNotSuperadmin) {
		t.Errorf("err = %v, want ErrNotSuperadmin", err)
	}
}
