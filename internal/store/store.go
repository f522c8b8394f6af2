// Package store persists threads, host requests, transcripts and the
// knowledge base. All writes to a request's status go through guarded
// updates keyed on the current status, so concurrent workers and the reply
// listener cannot revive a finished request.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/casabot/innkeeper/internal/models"
	"gorm.io/gorm"
)

// Store wraps the database handle with the persistence operations the
// supervisor, workers and host bridge share.
type Store struct {
	db *gorm.DB
}

// New returns a Store over the given database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- threads ---

// UpsertThread records that a thread was seen, creating it on first sight.
func (s *Store) UpsertThread(id, guestName string, seenAt time.Time) error {
	var thread models.Thread
	err := s.db.First(&thread, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		thread = models.Thread{ID: id, GuestName: guestName, LastSeenAt: seenAt}
		if err := s.db.Create(&thread).Error; err != nil {
			return fmt.Errorf("store: create thread %s: %w", id, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: load thread %s: %w", id, err)
	}
	updates := map[string]interface{}{"last_seen_at": seenAt}
	if guestName != "" {
		updates["guest_name"] = guestName
	}
	if err := s.db.Model(&thread).Updates(updates).Error; err != nil {
		return fmt.Errorf("store: touch thread %s: %w", id, err)
	}
	return nil
}

// Thread loads one thread by id.
func (s *Store) Thread(id string) (*models.Thread, error) {
	var thread models.Thread
	if err := s.db.First(&thread, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: load thread %s: %w", id, err)
	}
	return &thread, nil
}

// Threads lists all known threads, most recently seen first.
func (s *Store) Threads() ([]models.Thread, error) {
	var threads []models.Thread
	if err := s.db.Order("last_seen_at DESC").Find(&threads).Error; err != nil {
		return nil, fmt.Errorf("store: list threads: %w", err)
	}
	return threads, nil
}

// --- host requests ---

// AddPendingRequest stores a new escalation in the waiting state.
func (s *Store) AddPendingRequest(req *models.HostRequest) error {
	if req.Status == "" {
		req.Status = models.RequestWaiting
	}
	if err := s.db.Create(req).Error; err != nil {
		return fmt.Errorf("store: add request %s: %w", req.ID, err)
	}
	return nil
}

// RequestByID loads one host request.
func (s *Store) RequestByID(id string) (*models.HostRequest, error) {
	var req models.HostRequest
	if err := s.db.First(&req, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: load request %s: %w", id, err)
	}
	return &req, nil
}

// MarkAnswered moves a request from waiting to answered, recording the host's
// response. It reports false when the request is absent or no longer waiting,
// which makes duplicate host replies harmless.
func (s *Store) MarkAnswered(id, response string, at time.Time) (bool, error) {
	res := s.db.Model(&models.HostRequest{}).
		Where("id = ? AND status = ?", id, models.RequestWaiting).
		Updates(map[string]interface{}{
			"status":        models.RequestAnswered,
			"host_response": response,
			"responded_at":  at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("store: mark request %s answered: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkExpired moves waiting requests created before the cutoff to expired
// and returns how many were moved.
func (s *Store) MarkExpired(cutoff time.Time) (int64, error) {
	res := s.db.Model(&models.HostRequest{}).
		Where("status = ? AND created_at < ?", models.RequestWaiting, cutoff).
		Update("status", models.RequestExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("store: expire requests: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// AnsweredRequests lists a thread's answered requests awaiting delivery,
// oldest first.
func (s *Store) AnsweredRequests(threadID string) ([]models.HostRequest, error) {
	var reqs []models.HostRequest
	err := s.db.Where("thread_id = ? AND status = ?", threadID, models.RequestAnswered).
		Order("created_at ASC").Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("store: list answered for %s: %w", threadID, err)
	}
	return reqs, nil
}

// WaitingRequests lists every request still waiting for a host, oldest first.
func (s *Store) WaitingRequests() ([]models.HostRequest, error) {
	var reqs []models.HostRequest
	err := s.db.Where("status = ?", models.RequestWaiting).
		Order("created_at ASC").Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("store: list waiting: %w", err)
	}
	return reqs, nil
}

// RemoveRequest deletes a request after its answer has been delivered.
func (s *Store) RemoveRequest(id string) error {
	if err := s.db.Delete(&models.HostRequest{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("store: remove request %s: %w", id, err)
	}
	return nil
}

// PruneThreadRequests deletes one thread's terminal requests older than the
// cutoff. Workers call this each cycle for their own thread.
func (s *Store) PruneThreadRequests(threadID string, cutoff time.Time) (int64, error) {
	res := s.db.Where("thread_id = ? AND status IN ? AND created_at < ?",
		threadID, []string{models.RequestAnswered, models.RequestExpired}, cutoff).
		Delete(&models.HostRequest{})
	if res.Error != nil {
		return 0, fmt.Errorf("store: prune requests for %s: %w", threadID, res.Error)
	}
	return res.RowsAffected, nil
}

// PruneRequests deletes terminal requests older than the cutoff and returns
// how many were removed.
func (s *Store) PruneRequests(cutoff time.Time) (int64, error) {
	res := s.db.Where("status IN ? AND created_at < ?",
		[]string{models.RequestAnswered, models.RequestExpired}, cutoff).
		Delete(&models.HostRequest{})
	if res.Error != nil {
		return 0, fmt.Errorf("store: prune requests: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// --- transcripts ---

// SaveHistory replaces a thread's stored transcript with the given turns.
// Sequence numbers are reassigned from the slice order.
func (s *Store) SaveHistory(threadID string, turns []models.ConversationTurn) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ConversationTurn{}, "thread_id = ?", threadID).Error; err != nil {
			return err
		}
		for i := range turns {
			turns[i].ID = 0
			turns[i].ThreadID = threadID
			turns[i].Sequence = i
			if err := tx.Create(&turns[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: save history for %s: %w", threadID, err)
	}
	return nil
}

// HistoryCount returns how many threads have a stored transcript.
func (s *Store) HistoryCount() (int64, error) {
	var n int64
	err := s.db.Model(&models.ConversationTurn{}).Distinct("thread_id").Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("store: count histories: %w", err)
	}
	return n, nil
}

// LoadHistory returns a thread's transcript in turn order.
func (s *Store) LoadHistory(threadID string) ([]models.ConversationTurn, error) {
	var turns []models.ConversationTurn
	err := s.db.Where("thread_id = ?", threadID).Order("sequence ASC").Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("store: load history for %s: %w", threadID, err)
	}
	return turns, nil
}

// --- knowledge base ---

// AppendQA adds a question/answer pair unless the exact pair already exists.
// It reports whether a new entry was written.
func (s *Store) AppendQA(question, answer, source string) (bool, error) {
	var count int64
	err := s.db.Model(&models.QAEntry{}).
		Where("question = ? AND answer = ?", question, answer).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("store: check qa duplicate: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	entry := models.QAEntry{Question: question, Answer: answer, Source: source}
	if err := s.db.Create(&entry).Error; err != nil {
		return false, fmt.Errorf("store: append qa: %w", err)
	}
	return true, nil
}

// QASnapshot returns all knowledge-base entries, oldest first.
func (s *Store) QASnapshot() ([]models.QAEntry, error) {
	var entries []models.QAEntry
	if err := s.db.Order("id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("store: qa snapshot: %w", err)
	}
	return entries, nil
}
