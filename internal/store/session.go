package store

import (
	"sigil/internal/logging"
)

// Turn is one entry in a session transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AppendTurn records one conversational turn for a session.
func (s *SymbolStore) AppendTurn(sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO session_history (session_id, role, content) VALUES (?, ?, ?)",
		sessionID, role, content,
	)
	if err != nil {
		logging.Get(logging.CategorySession).Error("Failed to append turn for session %s: %v", sessionID, err)
		return err
	}
	logging.SessionDebug("Appended %s turn to session %s (%d chars)", role, sessionID, len(content))
	return nil
}

// History returns the most recent turns for a session in chronological order.
// A limit of zero or less returns the full transcript.
func (s *SymbolStore) History(sessionID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT role, content FROM session_history WHERE session_id = ? ORDER BY id"
	args := []interface{}{sessionID}
	if limit > 0 {
		// Take the newest N, then reverse back into chronological order.
		query = `SELECT role, content FROM (
			SELECT id, role, content FROM session_history
			WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ClearSession deletes a session's transcript and returns the number of turns
// removed.
func (s *SymbolStore) ClearSession(sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM session_history WHERE session_id = ?", sessionID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	logging.Session("Cleared session %s (%d turns)", sessionID, n)
	return n, nil
}

// Sessions returns every session id with recorded history.
func (s *SymbolStore) Sessions() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT DISTINCT session_id FROM session_history ORDER BY session_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
