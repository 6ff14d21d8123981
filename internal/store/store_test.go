// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package store

import (
	"testing"

	"github.com/schoolfin/syncd/internal/models"
)

func TestUserStore_ReplaceAndClear(t *testing.T) {
	s := NewUserStore()
	if _, ok := s.Current(); ok {
		t.Fatal("new store should be empty")
	}

	avatar := []byte{1, 2, 3}
	perms := []string{"voucher:create"}
	s.Replace(models.UserProfile{ID: "1", Permissions: perms}, avatar)

	// callers mutating their inputs must not affect the mirror
	avatar[0] = 9
	perms[0] = "tampered"

	got, ok := s.Current()
	if !ok || got.ID != "1" {
		t.Fatalf("Current() = %+v, %v", got, ok)
	}
	if got.Permissions[0] != "voucher:create" {
		t.Errorf("permissions aliased caller slice: %v", got.Permissions)
	}
	if s.Avatar()[0] != 1 {
		t.Errorf("avatar aliased caller slice: %v", s.Avatar())
	}
	if s.UpdatedAt().IsZero() {
		t.Error("UpdatedAt should be set after Replace")
	}

	got.Permissions[0] = "changed"
	again, _ := s.Current()
	if again.Permissions[0] != "voucher:create" {
		t.Error("Current must return a copy")
	}

	s.Clear()
	if _, ok := s.Current(); ok {
		t.Error("Clear should empty the store")
	}
	if s.Avatar() != nil {
		t.Error("Clear should drop the avatar")
	}
}

func TestSchoolStore_ReplaceAndClear(t *testing.T) {
	s := NewSchoolStore()
	s.Replace(models.School{ID: "12", Name: "Rizal Elementary"}, []byte("png"))

	got, ok := s.Current()
	if !ok || got.Name != "Rizal Elementary" {
		t.Fatalf("Current() = %+v, %v", got, ok)
	}
	if string(s.Logo()) != "png" {
		t.Errorf("Logo() = %q", s.Logo())
	}

	s.Clear()
	if _, ok := s.Current(); ok || s.Logo() != nil {
		t.Error("Clear should empty the store")
	}
}
