// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package models

import "time"

// UserProfile is the current user as returned by GET /v1/users/me.
// The backend owns every field; syncd only mirrors it.
type UserProfile struct {
	ID           EntityID  `json:"id"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email,omitempty"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Role         string    `json:"role,omitempty"`
	Permissions  []string  `json:"permissions,omitempty"`
	SchoolID     EntityID  `json:"schoolId,omitempty"`
	AvatarURN    string    `json:"avatarUrn,omitempty"`
	SignatureURN string    `json:"signatureUrn,omitempty"`
	Deactivated  bool      `json:"deactivated"`
	LastModified time.Time `json:"lastModified"`
}

// ModifiedAfter reports whether p was modified strictly after other.
// A zero LastModified on p is never newer.
func (p *UserProfile) ModifiedAfter(other *UserProfile) bool {
	if p.LastModified.IsZero() {
		return false
	}
	if other == nil {
		return true
	}
	return p.LastModified.After(other.LastModified)
}

// School is a school record as returned by GET /v1/schools/{id}.
type School struct {
	ID           EntityID  `json:"id"`
	Name         string    `json:"name,omitempty"`
	Code         string    `json:"code,omitempty"`
	LogoURN      string    `json:"logoUrn,omitempty"`
	Deactivated  bool      `json:"deactivated"`
	LastModified time.Time `json:"lastModified"`
}
