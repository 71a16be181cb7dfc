package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/foodsnap/internal/jobqueue"
	"github.com/example/foodsnap/internal/recognition"
	"github.com/example/foodsnap/internal/repository"
)

type stubJobStore struct {
	mu sync.Mutex

	created    []*repository.RecognitionJob
	createErr  error
	findJob    *repository.RecognitionJob
	findErr    error
	failed     []failedCall
	persisted  []persistedCall
	persistErr error
	usedToday  int
	usedErr    error
}

type failedCall struct {
	jobID   string
	code    string
	payload string
}

type persistedCall struct {
	job     *repository.RecognitionJob
	items   []repository.MealItem
	payload string
}

func (s *stubJobStore) CreateJob(ctx context.Context, job *repository.RecognitionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, job)
	return nil
}

func (s *stubJobStore) FindJob(ctx context.Context, jobID string) (*repository.RecognitionJob, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.findJob != nil {
		return s.findJob, nil
	}
	return nil, repository.ErrJobNotFound
}

func (s *stubJobStore) MarkProcessing(ctx context.Context, jobID string) error {
	return nil
}

func (s *stubJobStore) FailJob(ctx context.Context, jobID, errorCode, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, failedCall{jobID: jobID, code: errorCode, payload: payload})
	return nil
}

func (s *stubJobStore) PersistRecognition(ctx context.Context, job *repository.RecognitionJob, items []repository.MealItem, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistErr != nil {
		return s.persistErr
	}
	s.persisted = append(s.persisted, persistedCall{job: job, items: items, payload: payload})
	return nil
}

func (s *stubJobStore) UsedToday(ctx context.Context, userID, day string) (int, error) {
	return s.usedToday, s.usedErr
}

func (s *stubJobStore) lastFailure() (failedCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failed) == 0 {
		return failedCall{}, false
	}
	return s.failed[len(s.failed)-1], true
}

type stubOwners struct {
	mu       sync.Mutex
	records  map[string]string
	owner    string
	recorded []string
}

func (s *stubOwners) Record(ctx context.Context, jobID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = map[string]string{}
	}
	s.records[jobID] = userID
	s.recorded = append(s.recorded, jobID)
	return nil
}

func (s *stubOwners) Owner(ctx context.Context, jobID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != "" {
		return s.owner
	}
	return s.records[jobID]
}

type stubBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
}

func (s *stubBlobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = data
	return nil
}

func (s *stubBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

type stubRecognizer struct {
	mu       sync.Mutex
	outcomes []recognition.Outcome
	errs     []error
	calls    int
}

func (s *stubRecognizer) Recognize(ctx context.Context, imageBytes []byte, contentType, correlationID string) (recognition.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return recognition.Outcome{}, err
	}
	if i < len(s.outcomes) {
		return s.outcomes[i], nil
	}
	if len(s.outcomes) > 0 {
		return s.outcomes[len(s.outcomes)-1], nil
	}
	return recognition.Outcome{OK: true, Payload: &recognition.Payload{}}, nil
}

type stubQueue struct {
	mu   sync.Mutex
	jobs []jobqueue.Job
	err  error
}

func (s *stubQueue) Enqueue(job jobqueue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func jobRow(jobID, userID, state string) *repository.RecognitionJob {
	return &repository.RecognitionJob{
		JobID:       jobID,
		UserID:      userID,
		State:       repository.JobState(state),
		ImageKey:    "uploads/" + userID + "/" + jobID,
		ContentType: "image/jpeg",
		MealType:    "lunch",
		MealDate:    "2026-08-25",
	}
}

func newTestUseCase(jobs *stubJobStore, owners *stubOwners, blobs *stubBlobs, recognizer *stubRecognizer, queue *stubQueue) *RecognitionUseCase {
	uc := NewRecognitionUseCase(jobs, owners, blobs, recognizer, 10, zap.NewNop())
	uc.AttachQueue(queue)
	uc.initialBackoff = time.Millisecond
	uc.maxBackoff = 2 * time.Millisecond
	return uc
}
