package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
)

const catalogCachePrefix = "catalog"

type courseCatalogRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, int, error)
}

type cachedCourseList struct {
	Items []models.CourseSummary `json:"items"`
	Total int                    `json:"total"`
}

// CourseService serves catalog reads, backed by the Redis cache when enabled.
type CourseService struct {
	repo   courseCatalogRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewCourseService constructs CourseService. cache may be nil.
func NewCourseService(repo courseCatalogRepository, cache *CacheService, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, cache: cache, logger: logger}
}

// List returns catalog rows. The boolean reports a cache hit.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, *models.Pagination, bool, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	filter.Page, filter.PageSize = page, size

	key := catalogCacheKey("list", filter.DepartmentID, strings.ToLower(filter.Search), strconv.Itoa(page), strconv.Itoa(size), filter.SortBy, filter.SortOrder)
	listing, hit, err := readThrough(ctx, s.cache, key, func(ctx context.Context) (cachedCourseList, error) {
		courses, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return cachedCourseList{}, err
		}
		if courses == nil {
			courses = []models.CourseSummary{}
		}
		return cachedCourseList{Items: courses, Total: total}, nil
	})
	if err != nil {
		return nil, nil, false, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to list courses")
	}
	return listing.Items, models.NewPagination(page, size, listing.Total), hit, nil
}

// Get returns a course with its weekly schedule. The boolean reports a cache hit.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, bool, error) {
	course, hit, err := readThrough(ctx, s.cache, catalogCacheKey("course", id), func(ctx context.Context) (*models.Course, error) {
		return s.repo.FindByID(ctx, id)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	case err != nil:
		return nil, false, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to load course")
	}
	return course, hit, nil
}

// InvalidateCourse drops the course snapshot and every cached listing, since any
// listing page may carry the changed seat count.
func (s *CourseService) InvalidateCourse(ctx context.Context, courseID string) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Evict(ctx, []string{catalogCacheKey("course", courseID)}, catalogCacheKey("list")+":*"); err != nil {
		s.logger.Warn("invalidate catalog cache", zap.String("course_id", courseID), zap.Error(err))
	}
}

func catalogCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 16)
	builder.WriteString(catalogCachePrefix)
	for _, part := range parts {
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}
