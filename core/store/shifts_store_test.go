package store

import (
	"context"
	"testing"
	"time"
)

func seedUserWithRole(t *testing.T, users UsersStore, roles RolesStore, username, role string) int64 {
	t.Helper()
	ctx := context.Background()
	roleID, err := roles.CreateRole(ctx, role, "", nil)
	if err != nil {
		// Role may already exist from an earlier seed in the same test.
		existing, lerr := roles.ListRoles(ctx)
		if lerr != nil {
			t.Fatalf("create role: %v", err)
		}
		for _, r := range existing {
			if r.Name == role {
				roleID = r.ID
			}
		}
		if roleID == 0 {
			t.Fatalf("create role: %v", err)
		}
	}
	userID, err := users.CreateUser(ctx, &User{Username: username}, "pw-"+username, []int64{roleID})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return userID
}

func TestRollShiftsAndActiveRoster(t *testing.T) {
	db := newTestDB(t)
	users := NewUsersStore(db)
	roles := NewRolesStore(db)
	shifts := NewShiftsStore(db)
	ctx := context.Background()

	onDuty := seedUserWithRole(t, users, roles, "a.onduty", "responder")
	offDuty := seedUserWithRole(t, users, roles, "b.offduty", "responder")

	now := time.Now().UTC()
	if _, err := shifts.CreateShift(ctx, &Shift{UserID: onDuty, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create active shift: %v", err)
	}
	if _, err := shifts.CreateShift(ctx, &Shift{UserID: offDuty, StartsAt: now.Add(-3 * time.Hour), EndsAt: now.Add(-2 * time.Hour)}); err != nil {
		t.Fatalf("create past shift: %v", err)
	}

	if _, err := shifts.RollShifts(ctx, now); err != nil {
		t.Fatalf("roll shifts: %v", err)
	}

	roster, err := shifts.ActiveUsersNow(ctx)
	if err != nil {
		t.Fatalf("active users: %v", err)
	}
	if len(roster) != 1 {
		t.Fatalf("roster = %+v, want 1 user", roster)
	}
	if roster[0].Username != "a.onduty" {
		t.Fatalf("roster user = %q", roster[0].Username)
	}
	if len(roster[0].Roles) != 1 || roster[0].Roles[0] != "responder" {
		t.Fatalf("roster roles = %+v", roster[0].Roles)
	}
}

func TestRollShiftsEndsExpired(t *testing.T) {
	db := newTestDB(t)
	users := NewUsersStore(db)
	roles := NewRolesStore(db)
	shifts := NewShiftsStore(db)
	ctx := context.Background()

	userID := seedUserWithRole(t, users, roles, "c.expiring", "analyst")
	now := time.Now().UTC()
	if _, err := shifts.CreateShift(ctx, &Shift{UserID: userID, StartsAt: now.Add(-2 * time.Hour), EndsAt: now.Add(-time.Minute)}); err != nil {
		t.Fatalf("create shift: %v", err)
	}

	changed, err := shifts.RollShifts(ctx, now)
	if err != nil {
		t.Fatalf("roll shifts: %v", err)
	}
	if changed == 0 {
		t.Fatal("expected the expired shift to transition")
	}
	listed, err := shifts.ListShifts(ctx, true)
	if err != nil {
		t.Fatalf("list shifts: %v", err)
	}
	if len(listed) != 1 || listed[0].Status != ShiftEnded {
		t.Fatalf("shifts = %+v", listed)
	}
}
