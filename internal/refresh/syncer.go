// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

/*
Package refresh keeps the local user and school mirror consistent with the
backend.

Syncer.RefreshUser is the one refresh routine. Push messages, the polling
fallback and explicit refresh requests all end up in it, so the three paths
cannot diverge.

Staleness checks are throttled by a single last-check timestamp:

	push connection open    60s between checks
	push connection down    10s between checks

A check fetches the current profile and refreshes only when the server's
lastModified is strictly newer than the mirror's. A deactivated profile ends
the session immediately, whichever path observed it.
*/
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/schoolfin/syncd/internal/backend"
	"github.com/schoolfin/syncd/internal/cache"
	"github.com/schoolfin/syncd/internal/logging"
	"github.com/schoolfin/syncd/internal/metrics"
	"github.com/schoolfin/syncd/internal/models"
	"github.com/schoolfin/syncd/internal/session"
	"github.com/schoolfin/syncd/internal/store"
)

// Refresh triggers, used as metric labels.
const (
	TriggerPush      = "push"
	TriggerPoll      = "poll"
	TriggerForce     = "force"
	TriggerBootstrap = "bootstrap"
)

// Sync methods reported by SyncMethod.
const (
	SyncMethodWebSocket = "websocket"
	SyncMethodPolling   = "polling"
)

// ErrDeactivated is returned by every refresh path when the backend reports
// the account deactivated. The session has been logged out by then.
var ErrDeactivated = errors.New("account deactivated")

// Session is the subset of *session.Session the syncer needs.
type Session interface {
	IsAuthenticated() bool
	UserID() string
	Generation() uint64
	IfGeneration(gen uint64, commit func()) bool
	ForceLogout(reason string) bool
}

// Config sets the throttle intervals and the optional blob cache.
type Config struct {
	ConnectedInterval    time.Duration // default 60s
	DisconnectedInterval time.Duration // default 10s

	// Blobs caches avatars and logos by URN. Nil fetches every time.
	Blobs *cache.BlobCache
}

// Syncer refreshes the mirror from the backend.
type Syncer struct {
	api     backend.ClientInterface
	session Session
	users   *store.UserStore
	schools *store.SchoolStore
	cfg     Config

	mu          sync.Mutex
	lastCheck   time.Time
	isConnected func() bool

	now func() time.Time
}

// NewSyncer returns a Syncer that reports the push connection as down until
// SetConnectionStatus is called.
func NewSyncer(api backend.ClientInterface, sess Session, users *store.UserStore, schools *store.SchoolStore, cfg Config) *Syncer {
	if cfg.ConnectedInterval <= 0 {
		cfg.ConnectedInterval = 60 * time.Second
	}
	if cfg.DisconnectedInterval <= 0 {
		cfg.DisconnectedInterval = 10 * time.Second
	}
	return &Syncer{
		api:         api,
		session:     sess,
		users:       users,
		schools:     schools,
		cfg:         cfg,
		isConnected: func() bool { return false },
		now:         time.Now,
	}
}

// SetConnectionStatus installs the push connection health probe.
func (s *Syncer) SetConnectionStatus(isConnected func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if isConnected == nil {
		isConnected = func() bool { return false }
	}
	s.isConnected = isConnected
}

func (s *Syncer) connected() bool {
	s.mu.Lock()
	probe := s.isConnected
	s.mu.Unlock()
	return probe()
}

// SyncMethod reports "websocket" while the push connection is open and
// "polling" otherwise.
func (s *Syncer) SyncMethod() string {
	if s.connected() {
		return SyncMethodWebSocket
	}
	return SyncMethodPolling
}

// ThrottleInterval returns the minimum spacing of staleness checks given the
// current push connection health.
func (s *Syncer) ThrottleInterval() time.Duration {
	if s.connected() {
		return s.cfg.ConnectedInterval
	}
	return s.cfg.DisconnectedInterval
}

// LastCheck returns when the last staleness check ran, zero if never.
func (s *Syncer) LastCheck() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCheck
}

// LocalUserID returns the mirrored user's id, falling back to the session
// identity before the first refresh.
func (s *Syncer) LocalUserID() string {
	if p, ok := s.users.Current(); ok && p.ID != "" {
		return p.ID.String()
	}
	return s.session.UserID()
}

// HasMirror reports whether a user profile has been loaded.
func (s *Syncer) HasMirror() bool {
	_, ok := s.users.Current()
	return ok
}

// claimCheck records a check at now unless one ran within the throttle
// interval.
func (s *Syncer) claimCheck(interval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !s.lastCheck.IsZero() && now.Sub(s.lastCheck) < interval {
		return false
	}
	s.lastCheck = now
	return true
}

// RefreshUser fetches the profile, avatar and school and overwrites the
// mirror. On failure the mirror is left unchanged.
func (s *Syncer) RefreshUser(ctx context.Context) error {
	return s.refresh(ctx, TriggerPush)
}

func (s *Syncer) refresh(ctx context.Context, trigger string) error {
	if !s.session.IsAuthenticated() {
		logging.Ctx(ctx).Debug().Str("trigger", trigger).Msg("Skipping refresh, not authenticated")
		return nil
	}

	start := time.Now()
	gen := s.session.Generation()

	profile, err := s.api.GetCurrentUser(ctx)
	if err != nil {
		metrics.RecordRefresh(trigger, time.Since(start), err)
		logging.Ctx(ctx).Warn().Err(err).Str("trigger", trigger).Msg("Failed to fetch current user")
		s.logoutIfUnauthorized(ctx, err)
		return fmt.Errorf("fetch current user: %w", err)
	}

	_, err = s.apply(ctx, trigger, gen, profile)
	metrics.RecordRefresh(trigger, time.Since(start), err)
	return err
}

// apply completes a refresh from an already fetched profile. It reports
// whether the mirror was written.
func (s *Syncer) apply(ctx context.Context, trigger string, gen uint64, profile *models.UserProfile) (bool, error) {
	log := logging.Ctx(ctx)

	if profile.Deactivated {
		log.Warn().Str("user_id", profile.ID.String()).Msg("Backend reports account deactivated")
		s.session.ForceLogout(session.ReasonUserDeactivated)
		return false, ErrDeactivated
	}

	var avatar []byte
	if profile.AvatarURN != "" {
		blob, err := s.fetchBlob(profile.AvatarURN, func() ([]byte, error) {
			return s.api.GetUserAvatar(ctx, profile.AvatarURN)
		})
		if err != nil {
			log.Warn().Err(err).Str("avatar_urn", profile.AvatarURN).Msg("Failed to fetch avatar")
			s.logoutIfUnauthorized(ctx, err)
			return false, fmt.Errorf("fetch avatar: %w", err)
		}
		avatar = blob
	}

	school, logo, schoolOK := s.fetchSchool(ctx, profile.SchoolID.String())

	committed := s.session.IfGeneration(gen, func() {
		s.users.Replace(*profile, avatar)
		if schoolOK {
			s.schools.Replace(*school, logo)
		}
	})
	if !committed {
		log.Info().Str("trigger", trigger).Msg("Session changed during refresh, discarding result")
		return false, nil
	}

	log.Info().
		Str("trigger", trigger).
		Str("user_id", profile.ID.String()).
		Time("last_modified", profile.LastModified).
		Msg("Local mirror refreshed")
	return true, nil
}

// fetchSchool loads the user's school and logo. Failures are logged and leave
// the school mirror as it was.
func (s *Syncer) fetchSchool(ctx context.Context, id string) (*models.School, []byte, bool) {
	if id == "" {
		return nil, nil, false
	}
	log := logging.Ctx(ctx)

	school, err := s.api.GetSchool(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("school_id", id).Msg("Failed to fetch school")
		return nil, nil, false
	}

	var logo []byte
	if school.LogoURN != "" {
		logo, err = s.fetchBlob(school.LogoURN, func() ([]byte, error) {
			return s.api.GetSchoolLogo(ctx, school.LogoURN)
		})
		if err != nil {
			log.Warn().Err(err).Str("logo_urn", school.LogoURN).Msg("Failed to fetch school logo")
			return nil, nil, false
		}
	}
	return school, logo, true
}

// logoutIfUnauthorized ends the session when the backend rejected its token.
func (s *Syncer) logoutIfUnauthorized(ctx context.Context, err error) {
	if !errors.Is(err, backend.ErrUnauthorized) {
		return
	}
	logging.Ctx(ctx).Warn().Err(err).Msg("Backend rejected the access token")
	s.session.ForceLogout(session.ReasonUnauthorized)
}

// fetchBlob serves urn from the blob cache, calling fetch on a miss.
func (s *Syncer) fetchBlob(urn string, fetch func() ([]byte, error)) ([]byte, error) {
	if s.cfg.Blobs == nil {
		return fetch()
	}
	if blob, ok := s.cfg.Blobs.Get(urn); ok {
		return blob, nil
	}
	blob, err := fetch()
	if err != nil {
		return nil, err
	}
	s.cfg.Blobs.Add(urn, blob)
	return blob, nil
}

// CheckForUpdates runs a throttled staleness check. It returns true when the
// server copy was newer and the mirror has been refreshed, and ErrDeactivated
// after logging out a deactivated account.
func (s *Syncer) CheckForUpdates(ctx context.Context) (bool, error) {
	if !s.session.IsAuthenticated() {
		metrics.RecordStalenessCheck("skipped")
		return false, nil
	}
	local, ok := s.users.Current()
	if !ok {
		metrics.RecordStalenessCheck("skipped")
		return false, nil
	}

	if !s.claimCheck(s.ThrottleInterval()) {
		metrics.RecordStalenessCheck("throttled")
		return false, nil
	}

	return s.compareAndRefresh(ctx, TriggerPoll, &local)
}

// ForceRefresh resets the throttle and runs the check unconditionally. With
// no mirror loaded it performs a full refresh instead.
func (s *Syncer) ForceRefresh(ctx context.Context) (bool, error) {
	if !s.session.IsAuthenticated() {
		metrics.RecordStalenessCheck("skipped")
		return false, nil
	}

	s.mu.Lock()
	s.lastCheck = s.now()
	s.mu.Unlock()

	local, ok := s.users.Current()
	if !ok {
		if err := s.refresh(ctx, TriggerForce); err != nil {
			return false, err
		}
		return s.HasMirror(), nil
	}
	return s.compareAndRefresh(ctx, TriggerForce, &local)
}

// Bootstrap loads the mirror when it is empty, subject to the throttle.
func (s *Syncer) Bootstrap(ctx context.Context) error {
	if !s.session.IsAuthenticated() || s.HasMirror() {
		return nil
	}
	if !s.claimCheck(s.ThrottleInterval()) {
		return nil
	}
	return s.refresh(ctx, TriggerBootstrap)
}

func (s *Syncer) compareAndRefresh(ctx context.Context, trigger string, local *models.UserProfile) (bool, error) {
	log := logging.Ctx(ctx)
	start := time.Now()
	gen := s.session.Generation()

	remote, err := s.api.GetCurrentUser(ctx)
	if err != nil {
		metrics.RecordStalenessCheck("error")
		log.Warn().Err(err).Str("trigger", trigger).Msg("Staleness check failed")
		s.logoutIfUnauthorized(ctx, err)
		return false, fmt.Errorf("fetch current user: %w", err)
	}

	if remote.Deactivated {
		metrics.RecordStalenessCheck("deactivated")
		log.Warn().Str("user_id", remote.ID.String()).Msg("Backend reports account deactivated")
		s.session.ForceLogout(session.ReasonUserDeactivated)
		return false, ErrDeactivated
	}

	if !remote.ModifiedAfter(local) {
		metrics.RecordStalenessCheck("current")
		log.Debug().
			Str("trigger", trigger).
			Time("local", local.LastModified).
			Time("remote", remote.LastModified).
			Msg("Local mirror is current")
		return false, nil
	}

	metrics.RecordStalenessCheck("stale")
	log.Info().
		Time("local", local.LastModified).
		Time("remote", remote.LastModified).
		Msg("Server profile is newer, refreshing")

	applied, err := s.apply(ctx, trigger, gen, remote)
	metrics.RecordRefresh(trigger, time.Since(start), err)
	if err != nil {
		return false, err
	}
	return applied, nil
}
