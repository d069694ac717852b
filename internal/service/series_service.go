package service

import (
	"context"
	"errors"

	"numera/internal/dto"
	"numera/internal/model"
	"numera/internal/repository"

	"github.com/google/uuid"
)

type SeriesService interface {
	Create(ctx context.Context, req dto.CreateSeriesRequest) (*dto.SeriesResponse, error)
	List(ctx context.Context) ([]dto.SeriesResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.SeriesResponse, error)
	// Counters returns the informational per-prefix view of last issued
	// integers; allocation never reads from it.
	Counters(ctx context.Context, id uuid.UUID) ([]dto.CounterResponse, error)
}

type seriesService struct {
	repo repository.SeriesRepository
}

func NewSeriesService(repo repository.SeriesRepository) SeriesService {
	return &seriesService{repo: repo}
}

func (s *seriesService) Create(ctx context.Context, req dto.CreateSeriesRequest) (*dto.SeriesResponse, error) {
	series := &model.DocumentSeries{
		Code:   req.Code,
		Year:   req.Year,
		Kind:   model.SeriesKind(req.Kind),
		Active: true,
	}
	if err := s.repo.Create(ctx, series); err != nil {
		return nil, err
	}
	return seriesToResponse(series), nil
}

func (s *seriesService) List(ctx context.Context) ([]dto.SeriesResponse, error) {
	series, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SeriesResponse, 0, len(series))
	for i := range series {
		out = append(out, *seriesToResponse(&series[i]))
	}
	return out, nil
}

func (s *seriesService) Get(ctx context.Context, id uuid.UUID) (*dto.SeriesResponse, error) {
	series, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.New("series not found")
	}
	return seriesToResponse(series), nil
}

func (s *seriesService) Counters(ctx context.Context, id uuid.UUID) ([]dto.CounterResponse, error) {
	counters, err := s.repo.Counters(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]dto.CounterResponse, 0, len(counters))
	for _, c := range counters {
		out = append(out, dto.CounterResponse{
			Prefix:    c.Prefix,
			Year:      c.Year,
			LastValue: c.LastValue,
		})
	}
	return out, nil
}

func seriesToResponse(s *model.DocumentSeries) *dto.SeriesResponse {
	counters := make([]dto.CounterResponse, 0, len(s.Counters))
	for _, c := range s.Counters {
		counters = append(counters, dto.CounterResponse{
			Prefix:    c.Prefix,
			Year:      c.Year,
			LastValue: c.LastValue,
		})
	}
	return &dto.SeriesResponse{
		ID:       s.ID.String(),
		Code:     s.Code,
		Year:     s.Year,
		Kind:     string(s.Kind),
		Active:   s.Active,
		Counters: counters,
	}
}
