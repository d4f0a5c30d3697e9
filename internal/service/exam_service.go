package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certlab/examd/internal/config"
	"github.com/certlab/examd/internal/model"
	"github.com/certlab/examd/internal/repository"
	"github.com/certlab/examd/internal/response"
)

// Domain Errors
var (
	ErrExamNotFound = errors.New("exam not found")
	ErrNoQuestions  = errors.New("exam has no questions")
)

// ExamService handles exam catalog reads and Redis payload caching.
type ExamService struct {
	examRepo *repository.ExamRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(examRepo *repository.ExamRepository, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		examRepo: examRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrExamNotFound
	}
	return exam, nil
}

// ListCatalog retrieves the published exam catalog with pagination.
func (s *ExamService) ListCatalog(ctx context.Context, page, perPage int) ([]model.ExamSummary, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	exams, total, err := s.examRepo.ListPublishedPaginated(ctx, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	if exams == nil {
		exams = []model.ExamSummary{}
	}

	totalPages := (total + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return exams, pagination, nil
}

// GetPayload returns the candidate-facing exam detail, served from the Redis
// cache when warm and rebuilt from Postgres on a miss.
func (s *ExamService) GetPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	key := config.CacheKey.ExamPayloadKey(examID.String())

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		payload := &model.ExamPayload{}
		if err := json.Unmarshal(raw, payload); err == nil {
			return payload, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("Corrupt cached payload, rebuilding")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Payload cache read failed, falling back to Postgres")
	}

	payload, err := s.buildPayload(ctx, examID)
	if err != nil {
		return nil, err
	}
	s.cachePayload(ctx, key, payload)
	return payload, nil
}

// WarmExamCache prewarms the payload cache for one exam, so the first
// candidates after a deploy never pay the rebuild cost.
func (s *ExamService) WarmExamCache(ctx context.Context, examID uuid.UUID) error {
	payload, err := s.buildPayload(ctx, examID)
	if err != nil {
		return err
	}
	s.cachePayload(ctx, config.CacheKey.ExamPayloadKey(examID.String()), payload)
	return nil
}

// PrewarmAllCaches loads every published exam payload into Redis. Called on
// startup before the server accepts traffic, so lazy rebuilds never stampede
// Postgres under a thundering herd.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, _, err := s.examRepo.ListPublishedPaginated(ctx, 1000, 0)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	warmed := 0
	for _, exam := range exams {
		if err := s.WarmExamCache(ctx, exam.ID); err != nil {
			s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Prewarm failed for exam")
			continue
		}
		warmed++
	}

	s.log.Info().Int("warmed", warmed).Int("total", len(exams)).Msg("Exam caches prewarmed")
	return nil
}

func (s *ExamService) buildPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, ErrExamNotFound
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotFound
	}

	n, err := s.examRepo.CountQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	if n == 0 {
		return nil, ErrNoQuestions
	}

	objectives, err := s.examRepo.ListObjectives(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list objectives: %w", err)
	}

	return &model.ExamPayload{
		ExamID:          exam.ID,
		Title:           exam.Title,
		Description:     exam.Description,
		DurationMinutes: exam.DurationMinutes,
		QuestionCount:   exam.QuestionCount,
		PassingScore:    exam.PassingScore,
		Objectives:      objectives,
	}, nil
}

func (s *ExamService) cachePayload(ctx context.Context, key string, payload *model.ExamPayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Payload cache write failed")
	}
}
