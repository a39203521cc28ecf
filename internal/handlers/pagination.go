package handlers

import (
	"errors"
	"strconv"

	"storefront/internal/repository"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var errInvalidPagination = errors.New("invalid pagination params")

func parsePaginationParams(pageStr, limitStr string) (int64, int64, error) {
	page := int64(1)
	limit := int64(defaultPageLimit)

	if pageStr != "" {
		p, err := strconv.ParseInt(pageStr, 10, 64)
		if err != nil || p < 1 {
			return 0, 0, errInvalidPagination
		}
		page = p
	}

	if limitStr != "" {
		l, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || l < 1 {
			return 0, 0, errInvalidPagination
		}
		limit = l
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	return page, limit, nil
}

func pageFromQuery(pageStr, limitStr string) (repository.Page, error) {
	page, limit, err := parsePaginationParams(pageStr, limitStr)
	if err != nil {
		return repository.Page{}, err
	}
	return repository.Page{Page: page, Limit: limit}, nil
}

func listResponse(items any, page repository.Page, total int64) listPayload {
	return listPayload{
		Items:      items,
		Pagination: &pageMeta{Page: page.Page, Limit: page.Limit, Total: total},
	}
}
