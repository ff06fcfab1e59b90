package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/peer-review/review-service/internal/models"
	"github.com/RubachokBoss/peer-review/review-service/internal/repository"
)

// DistributorService turns the delivered-submission set of an
// assignment into a verified reviewer -> submission mapping: either a
// random derangement (automatic mode) or a strictly validated manual
// list. It performs no writes.
type DistributorService interface {
	BuildVerifiedAssignments(ctx context.Context, data models.ReviewProcessCreate) ([]models.AssignmentPair, error)
}

type distributorService struct {
	eventRepo repository.SubmissionEventRepository
	newRand   func() *rand.Rand
	logger    zerolog.Logger
}

func NewDistributorService(eventRepo repository.SubmissionEventRepository, logger zerolog.Logger) DistributorService {
	return &distributorService{
		eventRepo: eventRepo,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		logger: logger,
	}
}

// NewDistributorServiceWithRand injects the random source factory so a
// seeded generator makes the shuffle reproducible.
func NewDistributorServiceWithRand(eventRepo repository.SubmissionEventRepository, newRand func() *rand.Rand, logger zerolog.Logger) DistributorService {
	return &distributorService{
		eventRepo: eventRepo,
		newRand:   newRand,
		logger:    logger,
	}
}

func (s *distributorService) BuildVerifiedAssignments(ctx context.Context, data models.ReviewProcessCreate) ([]models.AssignmentPair, error) {
	submissions, err := s.eventRepo.ListDelivered(ctx, data.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivered submissions: %w", err)
	}
	if len(submissions) == 0 {
		return nil, newDistributionError("no delivered submissions found for assignment %s", data.AssignmentID)
	}

	studentToSubmission := make(map[string]string, len(submissions))
	submissionIDs := make(map[string]struct{}, len(submissions))
	for _, sub := range submissions {
		studentToSubmission[sub.StudentID] = sub.SubmissionID
		submissionIDs[sub.SubmissionID] = struct{}{}
	}

	if data.AutomaticMode {
		return s.autoDistribute(studentToSubmission)
	}

	if len(data.Assignments) == 0 {
		return nil, newDistributionError("manual mode: an assignment list is required")
	}

	return validateManual(data.Assignments, studentToSubmission, submissionIDs)
}

func validateManual(
	manualList []models.AssignmentPair,
	studentToSubmission map[string]string,
	submissionIDs map[string]struct{},
) ([]models.AssignmentPair, error) {
	reviewers := make(map[string]int, len(manualList))
	for _, pair := range manualList {
		reviewers[pair.Reviewer]++
	}

	// Every student who delivered must appear as a reviewer.
	var missing []string
	for student := range studentToSubmission {
		if _, ok := reviewers[student]; !ok {
			missing = append(missing, student)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, newDistributionError("assignments are missing for the following students: %s", strings.Join(missing, ", "))
	}

	// Self-reviews and unknown submissions are collected and reported
	// together as one error.
	var errs []string
	for _, pair := range manualList {
		if ownSub, ok := studentToSubmission[pair.Reviewer]; ok && pair.SubmissionID == ownSub {
			errs = append(errs, fmt.Sprintf("%s is assigned to their own submission %s", pair.Reviewer, pair.SubmissionID))
		}
		if _, ok := submissionIDs[pair.SubmissionID]; !ok {
			errs = append(errs, fmt.Sprintf("submission %s not found among the delivered ones", pair.SubmissionID))
		}
	}
	if len(errs) > 0 {
		return nil, newDistributionError("%s", strings.Join(errs, "; "))
	}

	for reviewer, count := range reviewers {
		if count > 1 {
			return nil, newDistributionError("reviewer %s appears more than once in the manual list", reviewer)
		}
	}

	// Order preserved.
	return manualList, nil
}

func (s *distributorService) autoDistribute(studentToSubmission map[string]string) ([]models.AssignmentPair, error) {
	reviewers := make([]string, 0, len(studentToSubmission))
	for student := range studentToSubmission {
		reviewers = append(reviewers, student)
	}
	// stable ordering keeps the shuffle deterministic under a seeded rng
	sort.Strings(reviewers)

	if len(reviewers) < 2 {
		return nil, newDistributionError("cannot generate an automatic distribution with fewer than 2 students")
	}

	subs := make([]string, len(reviewers))
	for i, reviewer := range reviewers {
		subs[i] = studentToSubmission[reviewer]
	}

	permuted := derange(subs, s.newRand())

	pairs := make([]models.AssignmentPair, len(reviewers))
	for i, reviewer := range reviewers {
		pairs[i] = models.AssignmentPair{Reviewer: reviewer, SubmissionID: permuted[i]}
	}

	// Postcondition: nobody reviews their own submission.
	for _, pair := range pairs {
		if studentToSubmission[pair.Reviewer] == pair.SubmissionID {
			return nil, fmt.Errorf("derangement postcondition violated for reviewer %s", pair.Reviewer)
		}
	}

	return pairs, nil
}

// derange produces a permutation of subs with no fixed points for
// len(subs) >= 2. Sattolo's shuffle (swap partner strictly below the
// current index) yields a single n-cycle; if a custom variant ever
// leaves a fixed point, rotating by one position removes it without
// introducing a new one.
func derange(subs []string, rng *rand.Rand) []string {
	n := len(subs)
	permuted := append([]string(nil), subs...)

	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i) // 0 <= j < i
		permuted[i], permuted[j] = permuted[j], permuted[i]
	}

	for i := 0; i < n; i++ {
		if permuted[i] == subs[i] {
			permuted = append(permuted[1:], permuted[0])
			break
		}
	}

	return permuted
}
