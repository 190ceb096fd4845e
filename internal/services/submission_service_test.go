package services

import (
	"errors"
	"testing"

	"github.com/quorumhq/quorum/internal/models"
)

type submissionStubStore struct {
	*policyStubStore
	invitations map[string]*models.Invitation
	questions   []*models.Question
	submissions []*models.Submission
}

func newSubmissionStubStore() *submissionStubStore {
	return &submissionStubStore{
		policyStubStore: newPolicyStubStore(),
		invitations:     map[string]*models.Invitation{},
	}
}

func (s *submissionStubStore) GetInvitation(email string) (*models.Invitation, error) {
	if inv, ok := s.invitations[email]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, nil
}

func (s *submissionStubStore) ListQuestionsByGroup(group models.StakeholderGroup) ([]*models.Question, error) {
	var out []*models.Question
	for _, q := range s.questions {
		for _, g := range q.Groups {
			if g == group {
				out = append(out, q)
				break
			}
		}
	}
	return out, nil
}

func (s *submissionStubStore) AddSubmission(sub *models.Submission) error {
	inv, ok := s.invitations[sub.Email]
	if !ok {
		return errors.New("no such invitation")
	}
	s.submissions = append(s.submissions, sub)
	inv.Completed = true
	return nil
}

func (s *submissionStubStore) ListSubmissions() ([]*models.Submission, error) {
	return s.submissions, nil
}

func seedSubmissionFixture(store *submissionStubStore) {
	store.invitations["alice@example.com"] = &models.Invitation{
		Email: "alice@example.com", Group: models.GroupEmployee, Consented: true,
	}
	store.questions = []*models.Question{
		{ID: "q1", Groups: []models.StakeholderGroup{models.GroupEmployee}, Text: "Workload is manageable.", Type: "likert", Required: true, Order: 1},
		{ID: "q2", Groups: []models.StakeholderGroup{models.GroupEmployee}, Text: "Anything else?", Type: "text", Order: 2},
		{ID: "q3", Groups: []models.StakeholderGroup{models.GroupCustomer}, Text: "Customer only.", Type: "likert", Order: 3},
	}
}

func TestSubmitRecordsAndCompletes(t *testing.T) {
	store := newSubmissionStubStore()
	seedSubmissionFixture(store)
	svc := NewSubmissionService(store, NewPolicyService(store, ""))
	svc.now = fixedNow
	svc.idGen = func() string { return "sub1" }

	sub, err := svc.Submit("alice@example.com", []models.Answer{
		{QuestionID: "q1", Value: "4"},
		{QuestionID: "q2", Value: "All good."},
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if sub.ID != "sub1" || sub.Group != models.GroupEmployee {
		t.Fatalf("unexpected submission %+v", sub)
	}
	if !store.invitations["alice@example.com"].Completed {
		t.Fatalf("invitation not marked completed")
	}

	// A second submission must be rejected: one completion per invitation.
	_, err = svc.Submit("alice@example.com", []models.Answer{{QuestionID: "q1", Value: "4"}})
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSubmitRequiresConsent(t *testing.T) {
	store := newSubmissionStubStore()
	seedSubmissionFixture(store)
	store.invitations["alice@example.com"].Consented = false
	svc := NewSubmissionService(store, NewPolicyService(store, ""))

	_, err := svc.Submit("alice@example.com", []models.Answer{{QuestionID: "q1", Value: "4"}})
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestSubmitValidatesAnswers(t *testing.T) {
	store := newSubmissionStubStore()
	seedSubmissionFixture(store)
	svc := NewSubmissionService(store, NewPolicyService(store, ""))

	cases := []struct {
		name    string
		answers []models.Answer
	}{
		{"unknown question", []models.Answer{{QuestionID: "q1", Value: "4"}, {QuestionID: "nope", Value: "x"}}},
		{"question from another group", []models.Answer{{QuestionID: "q1", Value: "4"}, {QuestionID: "q3", Value: "5"}}},
		{"duplicate answer", []models.Answer{{QuestionID: "q1", Value: "4"}, {QuestionID: "q1", Value: "5"}}},
		{"missing required", []models.Answer{{QuestionID: "q2", Value: "hi"}}},
		{"empty value", []models.Answer{{QuestionID: "q1", Value: "  "}}},
		{"no answers", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit("alice@example.com", tc.answers)
			se, ok := AsServiceError(err)
			if !ok || se.Code != ErrorInvalid {
				t.Fatalf("expected invalid, got %v", err)
			}
		})
	}
}

func TestSubmitValidatesChoiceOptions(t *testing.T) {
	store := newSubmissionStubStore()
	store.invitations["alice@example.com"] = &models.Invitation{
		Email: "alice@example.com", Group: models.GroupCustomer, Consented: true,
	}
	store.questions = []*models.Question{
		{ID: "c1", Groups: []models.StakeholderGroup{models.GroupCustomer}, Text: "Channel?", Type: "choice", Options: []string{"web", "phone"}, Required: true},
	}
	svc := NewSubmissionService(store, NewPolicyService(store, ""))

	if _, err := svc.Submit("alice@example.com", []models.Answer{{QuestionID: "c1", Value: "fax"}}); err == nil {
		t.Fatalf("expected error for answer outside options")
	}
	if _, err := svc.Submit("alice@example.com", []models.Answer{{QuestionID: "c1", Value: "web"}}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
}

func TestSubmitDeniesAdminsAndBlocked(t *testing.T) {
	store := newSubmissionStubStore()
	seedSubmissionFixture(store)
	store.admins["boss@example.com"] = &models.Administrator{Email: "boss@example.com"}
	svc := NewSubmissionService(store, NewPolicyService(store, ""))

	_, err := svc.Submit("boss@example.com", []models.Answer{{QuestionID: "q1", Value: "4"}})
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorUnauthorized {
		t.Fatalf("expected unauthorized for admin, got %v", err)
	}

	store.invitations["alice@example.com"].Blocked = true
	_, err = svc.Submit("alice@example.com", []models.Answer{{QuestionID: "q1", Value: "4"}})
	se, ok = AsServiceError(err)
	if !ok || se.Code != ErrorUnauthorized {
		t.Fatalf("expected unauthorized for blocked invitation, got %v", err)
	}
}
