package workshop

import (
	"context"
)

// fetchProfile loads the owner's row. A missing row resolves to a nil
// profile; any other failure is logged and leaves the profile untouched.
func (s *Store) fetchProfile(ctx context.Context, epoch uint64, ownerID string) {
	profile, err := s.profiles.FindProfile(ctx, ownerID)
	if err != nil {
		if !IsProfileNotFound(err) {
			s.logger.Error("failed to fetch profile", "owner_id", ownerID, "error", err)
			s.emit(ctx, ActivityEventProfileSyncFailure, ownerID, "", map[string]any{
				"operation": "fetch",
				"error":     err.Error(),
			})
			return
		}
		s.logger.Debug("no profile for identity", "owner_id", ownerID)
		profile = nil
	}

	if !s.commitProfile(epoch, ownerID, profile) {
		s.discarded(ctx, "fetch", ownerID)
		return
	}

	if profile != nil {
		s.debugPayload("profile loaded", profile)
		s.emit(ctx, ActivityEventProfileLoaded, ownerID, "", nil)
	}
}

// createProfile inserts the default profile row for a new account.
func (s *Store) createProfile(ctx context.Context, epoch uint64, ownerID, name string) {
	profile := NewProfile(ownerID, name)
	if err := validate(profile, "invalid profile"); err != nil {
		s.logger.Error("refusing to create invalid profile", "owner_id", ownerID, "error", err)
		return
	}

	created, err := s.profiles.InsertProfile(ctx, profile)
	if err != nil {
		if IsProfileExists(err) {
			s.logger.Info("profile already exists, keeping the signed in session", "owner_id", ownerID)
		} else {
			s.logger.Error("failed to create profile", "owner_id", ownerID, "error", err)
		}
		s.emit(ctx, ActivityEventProfileSyncFailure, ownerID, "", map[string]any{
			"operation": "create",
			"error":     err.Error(),
		})
		return
	}

	if created == nil {
		created = profile
	}

	if !s.commitProfile(epoch, ownerID, created) {
		s.discarded(ctx, "create", ownerID)
		return
	}

	s.debugPayload("profile created", created)
	s.emit(ctx, ActivityEventProfileCreated, ownerID, "", nil)
}

// commitProfile stores profile if the epoch is still current and the
// identity still owns it.
func (s *Store) commitProfile(epoch uint64, ownerID string, profile *Profile) bool {
	return s.mutateAt(epoch, func(st *State) {
		if st.Identity == nil || st.Identity.ID != ownerID {
			return
		}
		st.Profile = profile.Clone()
	})
}

func (s *Store) discarded(ctx context.Context, operation, ownerID string) {
	s.logger.Debug("discarding stale profile result", "operation", operation, "owner_id", ownerID)
	s.emit(ctx, ActivityEventProfileSyncDiscarded, ownerID, "", map[string]any{
		"operation": operation,
	})
}
