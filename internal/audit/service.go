package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Lister reads audit pages.
type Lister interface {
	List(ctx context.Context, tenant uuid.UUID, filters Filters, limit, offset int) ([]Entry, error)
}

// Service coordinates audit reads.
type Service struct {
	repo Lister
}

// NewService constructs an audit read service.
func NewService(repo Lister) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of the tenant's audit log, newest first.
func (s *Service) Timeline(ctx context.Context, tenant uuid.UUID, filters Filters) (Page, error) {
	if s.repo == nil {
		return Page{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	pageNum := filters.Page
	if pageNum <= 0 {
		pageNum = 1
	}
	offset := (pageNum - 1) * pageSize

	entries, err := s.repo.List(ctx, tenant, filters, pageSize+1, offset)
	if err != nil {
		return Page{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	return Page{Entries: entries, HasNext: hasNext, Page: pageNum, PageSize: pageSize}, nil
}
