package storage

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/weft-ai/weft/pkg/types"
)

// Store layers the conversation domain over Storage: sessions, their
// messages, and append-only iteration records. IDs are ULIDs, so sorting by
// id yields creation order.
type Store struct {
	db *Storage
}

// NewStore creates a Store rooted at basePath.
func NewStore(basePath string) *Store {
	return &Store{db: New(basePath)}
}

// PutSession writes a session document.
func (s *Store) PutSession(ctx context.Context, sess *types.Session) error {
	return s.db.Put(ctx, []string{"session", sess.ID}, sess)
}

// GetSession reads one session. Returns ErrNotFound for unknown ids.
func (s *Store) GetSession(ctx context.Context, id string) (*types.Session, error) {
	var sess types.Session
	if err := s.db.Get(ctx, []string{"session", id}, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]types.Session, error) {
	var sessions []types.Session
	err := s.db.Scan(ctx, []string{"session"}, func(_ string, data json.RawMessage) error {
		var sess types.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return nil // skip corrupt documents
		}
		sessions = append(sessions, sess)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Time.Created > sessions[j].Time.Created
	})
	return sessions, nil
}

// DeleteSession removes a session and everything stored under it.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.db.Delete(ctx, []string{"session", id}); err != nil {
		return err
	}
	if err := s.db.DeleteDir(ctx, []string{"message", id}); err != nil {
		return err
	}
	return s.db.DeleteDir(ctx, []string{"record", id})
}

// AppendMessage persists one conversation message.
func (s *Store) AppendMessage(ctx context.Context, rec *types.MessageRecord) error {
	return s.db.Put(ctx, []string{"message", rec.SessionID, rec.ID}, rec)
}

// Messages returns a session's messages in creation order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]types.MessageRecord, error) {
	var records []types.MessageRecord
	err := s.db.Scan(ctx, []string{"message", sessionID}, func(_ string, data json.RawMessage) error {
		var rec types.MessageRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// AppendRecord persists one iteration record.
func (s *Store) AppendRecord(ctx context.Context, rec *types.IterationRecord) error {
	return s.db.Put(ctx, []string{"record", rec.SessionID, rec.ID}, rec)
}

// Records returns a session's iteration records in creation order.
func (s *Store) Records(ctx context.Context, sessionID string) ([]types.IterationRecord, error) {
	var records []types.IterationRecord
	err := s.db.Scan(ctx, []string{"record", sessionID}, func(_ string, data json.RawMessage) error {
		var rec types.IterationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}
