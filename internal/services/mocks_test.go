package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MockRepository is an in-memory repositories.Repository used by the service
// tests. It keeps the store-level guarantees the services lean on: unique
// access codes, one candidate per email, one session per (exam, candidate),
// one result per session, and a single-winner MarkSubmitted flip.
type MockRepository struct {
	mu sync.Mutex

	exams      map[uint]*models.Exam
	questions  map[uint]*models.Question
	candidates map[uint]*models.Candidate
	sessions   map[uint]*models.ExamSession
	results    map[uint]*models.Result
	users      map[string]*models.User

	examQuestions  map[uint][]uint // examID -> ordered question ids
	examCandidates map[uint]map[uint]bool

	nextExamID      uint
	nextQuestionID  uint
	nextCandidateID uint
	nextSessionID   uint
	nextSlotID      uint
	nextResultID    uint
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		exams:          make(map[uint]*models.Exam),
		questions:      make(map[uint]*models.Question),
		candidates:     make(map[uint]*models.Candidate),
		sessions:       make(map[uint]*models.ExamSession),
		results:        make(map[uint]*models.Result),
		users:          make(map[string]*models.User),
		examQuestions:  make(map[uint][]uint),
		examCandidates: make(map[uint]map[uint]bool),
	}
}

func (m *MockRepository) Exam() repositories.ExamRepository           { return (*mockExamRepo)(m) }
func (m *MockRepository) Question() repositories.QuestionRepository   { return (*mockQuestionRepo)(m) }
func (m *MockRepository) Candidate() repositories.CandidateRepository { return (*mockCandidateRepo)(m) }
func (m *MockRepository) Session() repositories.SessionRepository     { return (*mockSessionRepo)(m) }
func (m *MockRepository) Result() repositories.ResultRepository       { return (*mockResultRepo)(m) }
func (m *MockRepository) User() repositories.UserRepository           { return (*mockUserRepo)(m) }

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *MockRepository) Ping(ctx context.Context) error { return nil }
func (m *MockRepository) Close() error                   { return nil }

// ===== SEED HELPERS =====

func (m *MockRepository) AddUser(user *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *MockRepository) AddQuestion(q *models.Question) *models.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.ID == 0 {
		m.nextQuestionID++
		q.ID = m.nextQuestionID
	} else if q.ID > m.nextQuestionID {
		m.nextQuestionID = q.ID
	}
	m.questions[q.ID] = q
	return q
}

func (m *MockRepository) AddExam(exam *models.Exam, questionIDs []uint) *models.Exam {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exam.ID == 0 {
		m.nextExamID++
		exam.ID = m.nextExamID
	} else if exam.ID > m.nextExamID {
		m.nextExamID = exam.ID
	}
	m.exams[exam.ID] = exam
	m.examQuestions[exam.ID] = append([]uint(nil), questionIDs...)
	return exam
}

// ===== EXAM =====

type mockExamRepo MockRepository

func (m *mockExamRepo) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.exams {
		if existing.AccessCode == exam.AccessCode {
			return fmt.Errorf("duplicate access code %s", exam.AccessCode)
		}
	}
	m.nextExamID++
	exam.ID = m.nextExamID
	exam.CreatedAt = time.Now()
	m.exams[exam.ID] = exam
	return nil
}

func (m *mockExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exam, ok := m.exams[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return exam, nil
}

func (m *mockExamRepo) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exam, ok := m.exams[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	exam.Questions = nil
	for order, qid := range m.examQuestions[id] {
		exam.Questions = append(exam.Questions, models.ExamQuestion{
			ExamID:     id,
			QuestionID: qid,
			Order:      order,
			Question:   *m.questions[qid],
		})
	}
	return exam, nil
}

func (m *mockExamRepo) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[exam.ID]; !ok {
		return repositories.ErrNotFound
	}
	m.exams[exam.ID] = exam
	return nil
}

func (m *mockExamRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.exams, id)
	delete(m.examQuestions, id)
	return nil
}

func (m *mockExamRepo) GetByAccessCode(ctx context.Context, tx *gorm.DB, accessCode string) (*models.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, exam := range m.exams {
		if exam.AccessCode == accessCode {
			return exam, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *mockExamRepo) ExistsByAccessCode(ctx context.Context, tx *gorm.DB, accessCode string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, exam := range m.exams {
		if exam.AccessCode == accessCode {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockExamRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Exam
	for _, exam := range m.exams {
		if filters.IsActive != nil && exam.IsActive != *filters.IsActive {
			continue
		}
		out = append(out, exam)
	}
	return out, int64(len(out)), nil
}

func (m *mockExamRepo) GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Exam
	for _, exam := range m.exams {
		if exam.CreatedBy == creatorID {
			out = append(out, exam)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockExamRepo) SetQuestions(ctx context.Context, tx *gorm.DB, examID uint, questionIDs []uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.examQuestions[examID] = append([]uint(nil), questionIDs...)
	return nil
}

func (m *mockExamRepo) GetQuestionIDs(ctx context.Context, tx *gorm.DB, examID uint) ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint(nil), m.examQuestions[examID]...), nil
}

func (m *mockExamRepo) AddCandidate(ctx context.Context, tx *gorm.DB, examID, candidateID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.examCandidates[examID] == nil {
		m.examCandidates[examID] = make(map[uint]bool)
	}
	m.examCandidates[examID][candidateID] = true
	return nil
}

func (m *mockExamRepo) HasCandidate(ctx context.Context, tx *gorm.DB, examID, candidateID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.examCandidates[examID][candidateID], nil
}

func (m *mockExamRepo) GetStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.ExamStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &repositories.ExamStats{QuestionCount: len(m.examQuestions[examID])}
	var scoreSum float64
	var scored int
	for _, session := range m.sessions {
		if session.ExamID != examID {
			continue
		}
		stats.TotalSessions++
		if session.Submitted {
			stats.SubmittedSessions++
		}
		if session.AutoSubmitted {
			stats.AutoSubmitted++
		}
		for _, result := range m.results {
			if result.SessionID == session.ID {
				scoreSum += result.Percentage
				scored++
			}
		}
	}
	if scored > 0 {
		stats.AverageScore = scoreSum / float64(scored)
	}
	return stats, nil
}

// ===== QUESTION =====

type mockQuestionRepo MockRepository

func (m *mockQuestionRepo) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextQuestionID++
	question.ID = m.nextQuestionID
	m.questions[question.ID] = question
	return nil
}

func (m *mockQuestionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	question, ok := m.questions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return question, nil
}

func (m *mockQuestionRepo) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[question.ID]; !ok {
		return repositories.ErrNotFound
	}
	m.questions[question.ID] = question
	return nil
}

func (m *mockQuestionRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.questions, id)
	return nil
}

func (m *mockQuestionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Question
	for _, id := range ids {
		if question, ok := m.questions[id]; ok {
			out = append(out, question)
		}
	}
	return out, nil
}

func (m *mockQuestionRepo) GetByDifficulty(ctx context.Context, tx *gorm.DB, difficulty models.DifficultyLevel) ([]*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Question
	for id := uint(1); id <= m.nextQuestionID; id++ {
		if question, ok := m.questions[id]; ok && question.Difficulty == difficulty {
			out = append(out, question)
		}
	}
	return out, nil
}

func (m *mockQuestionRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Question
	for id := uint(1); id <= m.nextQuestionID; id++ {
		question, ok := m.questions[id]
		if !ok {
			continue
		}
		if filters.Difficulty != nil && question.Difficulty != *filters.Difficulty {
			continue
		}
		out = append(out, question)
	}
	return out, int64(len(out)), nil
}

func (m *mockQuestionRepo) CountByDifficulty(ctx context.Context, tx *gorm.DB) (*repositories.QuestionPoolCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := &repositories.QuestionPoolCounts{}
	for _, question := range m.questions {
		switch question.Difficulty {
		case models.DifficultyEasy:
			counts.Easy++
		case models.DifficultyMedium:
			counts.Medium++
		case models.DifficultyHard:
			counts.Hard++
		}
	}
	return counts, nil
}

func (m *mockQuestionRepo) IsUsedInExams(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ids := range m.examQuestions {
		for _, qid := range ids {
			if qid == id {
				return true, nil
			}
		}
	}
	return false, nil
}

// ===== CANDIDATE =====

type mockCandidateRepo MockRepository

func (m *mockCandidateRepo) Create(ctx context.Context, tx *gorm.DB, candidate *models.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.candidates {
		if existing.Email == candidate.Email {
			return fmt.Errorf("duplicate email %s", candidate.Email)
		}
	}
	m.nextCandidateID++
	candidate.ID = m.nextCandidateID
	m.candidates[candidate.ID] = candidate
	return nil
}

func (m *mockCandidateRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	candidate, ok := m.candidates[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return candidate, nil
}

func (m *mockCandidateRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, candidate := range m.candidates {
		if strings.EqualFold(candidate.Email, email) {
			return candidate, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *mockCandidateRepo) Update(ctx context.Context, tx *gorm.DB, candidate *models.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.candidates[candidate.ID]; !ok {
		return repositories.ErrNotFound
	}
	m.candidates[candidate.ID] = candidate
	return nil
}

func (m *mockCandidateRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.CandidateFilters) ([]*models.Candidate, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Candidate
	for id := uint(1); id <= m.nextCandidateID; id++ {
		candidate, ok := m.candidates[id]
		if !ok {
			continue
		}
		if filters.Email != nil && !strings.EqualFold(candidate.Email, *filters.Email) {
			continue
		}
		out = append(out, candidate)
	}
	return out, int64(len(out)), nil
}

// ===== SESSION =====

type mockSessionRepo MockRepository

// cloneSession returns a row copy the way a real store would, so callers
// mutating their view never race the shared state. Caller holds m.mu.
func (m *mockSessionRepo) cloneSession(session *models.ExamSession) *models.ExamSession {
	cp := *session
	cp.Slots = make([]models.AnswerSlot, len(session.Slots))
	copy(cp.Slots, session.Slots)
	cp.Result = nil
	return &cp
}

func (m *mockSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.ExamID == session.ExamID && existing.CandidateID == session.CandidateID {
			return fmt.Errorf("duplicate session for exam %d candidate %d", session.ExamID, session.CandidateID)
		}
	}
	m.nextSessionID++
	session.ID = m.nextSessionID
	for i := range session.Slots {
		m.nextSlotID++
		session.Slots[i].ID = m.nextSlotID
		session.Slots[i].SessionID = session.ID
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return m.cloneSession(session), nil
}

func (m *mockSessionRepo) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	session := m.cloneSession(stored)
	if exam, ok := m.exams[session.ExamID]; ok {
		session.Exam = *exam
	}
	if candidate, ok := m.candidates[session.CandidateID]; ok {
		session.Candidate = *candidate
	}
	for i := range session.Slots {
		if question, ok := m.questions[session.Slots[i].QuestionID]; ok {
			session.Slots[i].Question = *question
		}
	}
	for _, result := range m.results {
		if result.SessionID == session.ID {
			found := *result
			session.Result = &found
		}
	}
	return session, nil
}

func (m *mockSessionRepo) GetByExamAndCandidate(ctx context.Context, tx *gorm.DB, examID, candidateID uint) (*models.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		if session.ExamID == examID && session.CandidateID == candidateID {
			return m.cloneSession(session), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *mockSessionRepo) Update(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return repositories.ErrNotFound
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepo) UpdateRemaining(ctx context.Context, tx *gorm.DB, id uint, remainingSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return repositories.ErrNotFound
	}
	session.RemainingSeconds = remainingSeconds
	return nil
}

func (m *mockSessionRepo) UpdateSlotSelections(ctx context.Context, tx *gorm.DB, slotID uint, selected []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		for i := range session.Slots {
			if session.Slots[i].ID == slotID {
				session.Slots[i].SelectedIndices = datatypes.JSONSlice[int](append([]int(nil), selected...))
				return nil
			}
		}
	}
	return repositories.ErrNotFound
}

func (m *mockSessionRepo) MarkSubmitted(ctx context.Context, tx *gorm.DB, id uint, submittedAt time.Time, auto bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return false, repositories.ErrNotFound
	}
	if session.Submitted {
		return false, nil
	}
	session.Submitted = true
	session.AutoSubmitted = auto
	at := submittedAt
	session.SubmittedAt = &at
	return true, nil
}

func (m *mockSessionRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.SessionFilters) ([]*models.ExamSession, int64, error) {
	filters.ExamID = &examID
	return m.List(ctx, tx, filters)
}

func (m *mockSessionRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.SessionFilters) ([]*models.ExamSession, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ExamSession
	for id := uint(1); id <= m.nextSessionID; id++ {
		session, ok := m.sessions[id]
		if !ok {
			continue
		}
		if filters.ExamID != nil && session.ExamID != *filters.ExamID {
			continue
		}
		if filters.CandidateID != nil && session.CandidateID != *filters.CandidateID {
			continue
		}
		if filters.Submitted != nil && session.Submitted != *filters.Submitted {
			continue
		}
		if filters.AutoSubmitted != nil && session.AutoSubmitted != *filters.AutoSubmitted {
			continue
		}
		cp := m.cloneSession(session)
		if candidate, ok := m.candidates[session.CandidateID]; ok {
			cp.Candidate = *candidate
		}
		out = append(out, cp)
	}
	return out, int64(len(out)), nil
}

// ===== RESULT =====

type mockResultRepo MockRepository

func (m *mockResultRepo) Create(ctx context.Context, tx *gorm.DB, result *models.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.results {
		if existing.SessionID == result.SessionID {
			return fmt.Errorf("duplicate result for session %d", result.SessionID)
		}
	}
	m.nextResultID++
	result.ID = m.nextResultID
	m.results[result.ID] = result
	return nil
}

func (m *mockResultRepo) GetBySession(ctx context.Context, tx *gorm.DB, sessionID uint) (*models.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, result := range m.results {
		if result.SessionID == sessionID {
			return result, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *mockResultRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Result
	for id := uint(1); id <= m.nextResultID; id++ {
		result, ok := m.results[id]
		if !ok {
			continue
		}
		session, ok := m.sessions[result.SessionID]
		if !ok || session.ExamID != examID {
			continue
		}
		cp := (*mockSessionRepo)(m).cloneSession(session)
		if candidate, ok := m.candidates[session.CandidateID]; ok {
			cp.Candidate = *candidate
		}
		found := *result
		found.Session = *cp
		out = append(out, &found)
	}
	return out, nil
}

func (m *mockResultRepo) MarkEmailed(ctx context.Context, tx *gorm.DB, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.results[id]
	if !ok {
		return repositories.ErrNotFound
	}
	result.ResultEmailed = true
	return nil
}

// ===== USER =====

type mockUserRepo MockRepository

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return nil, repositories.ErrNotFound
}
