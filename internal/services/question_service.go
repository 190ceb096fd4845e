package services

import (
	"sort"

	"github.com/quorumhq/quorum/internal/models"
)

type QuestionStore interface {
	ListQuestionsByGroup(group models.StakeholderGroup) ([]*models.Question, error)
	AddQuestion(q *models.Question) error
}

type QuestionService struct {
	store QuestionStore
}

func NewQuestionService(store QuestionStore) *QuestionService {
	return &QuestionService{store: store}
}

// ListQuestions returns the question set for one stakeholder group, ordered
// by position then id.
func (s *QuestionService) ListQuestions(group models.StakeholderGroup) ([]*models.Question, error) {
	if !models.ValidGroup(group) {
		return nil, NewInvalidError("unknown stakeholder group")
	}
	qs, err := s.store.ListQuestionsByGroup(group)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(qs, func(i, j int) bool {
		if qs[i].Order == qs[j].Order {
			return qs[i].ID < qs[j].ID
		}
		return qs[i].Order < qs[j].Order
	})
	return qs, nil
}

func (s *QuestionService) AddQuestion(q *models.Question) error {
	if q == nil || q.Text == "" {
		return NewInvalidError("question text required")
	}
	if len(q.Groups) == 0 {
		return NewInvalidError("at least one stakeholder group required")
	}
	for _, g := range q.Groups {
		if !models.ValidGroup(g) {
			return NewInvalidError("unknown stakeholder group")
		}
	}
	if q.ID == "" {
		q.ID = shortID(8)
	}
	return s.store.AddQuestion(q)
}
