package services

import (
	"context"
	"fmt"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"gorm.io/gorm"
)

// ===== TIME ENFORCEMENT =====

// touch re-derives remaining time from the original start instant and the
// frozen budget. The stored remaining value is a cache of the last
// projection, never an input: subtracting incrementally would compound
// drift across touches.
//
// Observing remaining <= 0 auto-finalizes the session before failing the
// caller with ErrSessionTimeExpired. The failure and the durable state
// change belong to the same call.
func (s *sessionService) touch(ctx context.Context, session *models.ExamSession) (int, error) {
	elapsed := int(s.now().Sub(session.StartedAt).Seconds())
	remaining := session.TotalDurationSeconds - elapsed

	if remaining <= 0 {
		if _, err := s.finalize(ctx, session, true); err != nil {
			// A concurrent toucher already finalized; expiry still holds.
			if err != ErrSessionAlreadySubmitted {
				return 0, fmt.Errorf("failed to auto-submit expired session: %w", err)
			}
		} else {
			s.logger.Info("Session auto-submitted on expiry",
				"session_id", session.ID,
				"elapsed_seconds", elapsed)
		}
		return 0, ErrSessionTimeExpired
	}

	if err := s.repo.Session().UpdateRemaining(ctx, s.db, session.ID, remaining); err != nil {
		return 0, fmt.Errorf("failed to persist remaining time: %w", err)
	}
	session.RemainingSeconds = remaining

	return remaining, nil
}

// checkWindow enforces the exam's activation window. Bounds are inclusive
// and already normalized to day edges at authoring time; a missing bound
// leaves that side unbounded.
func (s *sessionService) checkWindow(exam *models.Exam) error {
	now := s.now()
	if exam.StartDate != nil && now.Before(*exam.StartDate) {
		return ErrExamNotYetOpen
	}
	if exam.EndDate != nil && now.After(*exam.EndDate) {
		return ErrExamWindowClosed
	}
	return nil
}

// ===== ANSWER MERGING =====

// mergeSelections merges the provided selections into the session's slots by
// question id. Slots not named stay untouched; selections naming a question
// outside the session are ignored, matching partial-save semantics.
func (s *sessionService) mergeSelections(ctx context.Context, tx *gorm.DB, session *models.ExamSession, answers []AnswerSelection) error {
	byQuestion := make(map[uint]*models.AnswerSlot, len(session.Slots))
	for i := range session.Slots {
		byQuestion[session.Slots[i].QuestionID] = &session.Slots[i]
	}

	for _, answer := range answers {
		slot, ok := byQuestion[answer.QuestionID]
		if !ok {
			s.logger.Warn("Ignoring selection for question outside session",
				"session_id", session.ID,
				"question_id", answer.QuestionID)
			continue
		}

		selected := answer.SelectedIndices
		if selected == nil {
			selected = []int{}
		}
		if err := s.repo.Session().UpdateSlotSelections(ctx, tx, slot.ID, selected); err != nil {
			return fmt.Errorf("failed to save answer for question %d: %w", answer.QuestionID, err)
		}
		slot.SelectedIndices = selected
	}

	return nil
}

// ===== CANDIDATE RESOLUTION =====

// findOrCreateCandidate is idempotent on email. A racing create resolves by
// re-reading the row the unique index let through.
func (s *sessionService) findOrCreateCandidate(ctx context.Context, name, email string, externalID *string) (*models.Candidate, error) {
	candidate, err := s.repo.Candidate().GetByEmail(ctx, s.db, email)
	if err == nil {
		return candidate, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up candidate: %w", err)
	}

	candidate = &models.Candidate{
		Name:       name,
		Email:      email,
		ExternalID: externalID,
	}
	if err := s.repo.Candidate().Create(ctx, s.db, candidate); err != nil {
		if existing, getErr := s.repo.Candidate().GetByEmail(ctx, s.db, email); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create candidate: %w", err)
	}

	return candidate, nil
}

// ===== VIEW BUILDING =====

// loadView re-reads the session with full details and renders it.
// includeKey attaches correct indices; it is true only for privileged
// callers and the taker's own live operations.
func (s *sessionService) loadView(ctx context.Context, sessionID uint, includeKey bool) (*SessionView, error) {
	session, err := s.repo.Session().GetByIDWithDetails(ctx, s.db, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session view: %w", err)
	}

	return buildSessionView(session, includeKey), nil
}

func buildSessionView(session *models.ExamSession, includeKey bool) *SessionView {
	view := &SessionView{
		ID:               session.ID,
		ExamID:           session.ExamID,
		ExamName:         session.Exam.Name,
		CandidateID:      session.CandidateID,
		CandidateName:    session.Candidate.Name,
		CandidateEmail:   session.Candidate.Email,
		StartedAt:        session.StartedAt,
		SubmittedAt:      session.SubmittedAt,
		RemainingSeconds: session.RemainingSeconds,
		Submitted:        session.Submitted,
		AutoSubmitted:    session.AutoSubmitted,
	}

	view.Slots = make([]AnswerSlotView, len(session.Slots))
	for i, slot := range session.Slots {
		slotView := AnswerSlotView{
			Order:           slot.Order,
			QuestionID:      slot.QuestionID,
			Text:            slot.Question.Text,
			Paragraph:       slot.Question.Paragraph,
			ImageURL:        slot.Question.ImageURL,
			SelectedIndices: slot.SelectedIndices,
		}

		slotView.Options = make([]OptionView, len(slot.Question.Options))
		for j, opt := range slot.Question.Options {
			slotView.Options[j] = OptionView{
				Index:    opt.Index,
				Text:     opt.Text,
				ImageURL: opt.ImageURL,
			}
		}

		if includeKey {
			slotView.CorrectIndices = slot.Question.CorrectIndices
		}

		view.Slots[i] = slotView
	}

	if session.Result != nil {
		view.Result = buildResultView(session.Result, session.AutoSubmitted)
	}

	return view
}

func buildResultView(result *models.Result, autoSubmitted bool) *ResultView {
	return &ResultView{
		SessionID:      result.SessionID,
		TotalQuestions: result.TotalQuestions,
		CorrectAnswers: result.CorrectAnswers,
		WrongAnswers:   result.WrongAnswers,
		Percentage:     result.Percentage,
		EvaluatedAt:    result.EvaluatedAt,
		AutoSubmitted:  autoSubmitted,
	}
}

func (s *sessionService) buildListResponse(sessions []*models.ExamSession, total int64, filters repositories.SessionFilters) *SessionListResponse {
	views := make([]*SessionView, len(sessions))
	for i, session := range sessions {
		view := &SessionView{
			ID:               session.ID,
			ExamID:           session.ExamID,
			CandidateID:      session.CandidateID,
			CandidateName:    session.Candidate.Name,
			CandidateEmail:   session.Candidate.Email,
			StartedAt:        session.StartedAt,
			SubmittedAt:      session.SubmittedAt,
			RemainingSeconds: session.RemainingSeconds,
			Submitted:        session.Submitted,
			AutoSubmitted:    session.AutoSubmitted,
		}
		if session.Result != nil {
			view.Result = buildResultView(session.Result, session.AutoSubmitted)
		}
		views[i] = view
	}

	page := 1
	if filters.Limit > 0 {
		page = filters.Offset/filters.Limit + 1
	}

	return &SessionListResponse{
		Sessions: views,
		Total:    total,
		Page:     page,
		Size:     len(views),
	}
}
