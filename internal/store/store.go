// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

// Package store holds the local mirror of the current user and their school.
// The backend is the single source of truth: entries are only ever replaced
// wholesale with what the backend returned, never patched.
package store

import (
	"sync"
	"time"

	"github.com/schoolfin/syncd/internal/models"
)

// UserStore mirrors the current user profile and avatar.
type UserStore struct {
	mu        sync.RWMutex
	profile   *models.UserProfile
	avatar    []byte
	updatedAt time.Time
}

// NewUserStore returns an empty store.
func NewUserStore() *UserStore {
	return &UserStore{}
}

// Current returns a copy of the mirrored profile.
func (s *UserStore) Current() (models.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return models.UserProfile{}, false
	}
	p := *s.profile
	p.Permissions = append([]string(nil), s.profile.Permissions...)
	return p, true
}

// Avatar returns a copy of the avatar blob, nil if none.
func (s *UserStore) Avatar() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBytes(s.avatar)
}

// UpdatedAt returns when the mirror was last replaced.
func (s *UserStore) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Replace overwrites the mirror with profile and avatar.
func (s *UserStore) Replace(profile models.UserProfile, avatar []byte) {
	profile.Permissions = append([]string(nil), profile.Permissions...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = &profile
	s.avatar = cloneBytes(avatar)
	s.updatedAt = time.Now()
}

// Clear drops the mirror.
func (s *UserStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
	s.avatar = nil
	s.updatedAt = time.Time{}
}

// SchoolStore mirrors the current user's school and its logo.
type SchoolStore struct {
	mu     sync.RWMutex
	school *models.School
	logo   []byte
}

// NewSchoolStore returns an empty store.
func NewSchoolStore() *SchoolStore {
	return &SchoolStore{}
}

// Current returns the mirrored school.
func (s *SchoolStore) Current() (models.School, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.school == nil {
		return models.School{}, false
	}
	return *s.school, true
}

// Logo returns a copy of the logo blob, nil if none.
func (s *SchoolStore) Logo() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBytes(s.logo)
}

// Replace overwrites the mirror.
func (s *SchoolStore) Replace(school models.School, logo []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.school = &school
	s.logo = cloneBytes(logo)
}

// Clear drops the mirror.
func (s *SchoolStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.school = nil
	s.logo = nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
