package chi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
	"github.com/kailas-cloud/cardex/internal/domain/search/query"
)

// reservedParams are query parameters that are never search filters.
var reservedParams = map[string]bool{
	"q":        true,
	"search":   true,
	"page":     true,
	"limit":    true,
	"sort":     true,
	"populate": true,
	"type":     true,
}

// textParam reads the free text from q, falling back to search.
func textParam(v url.Values) string {
	if q := v.Get("q"); q != "" {
		return q
	}
	return v.Get("search")
}

// pagination parses the 1-based page and the page size. The size defaults to
// query.DefaultLimit and is capped at query.MaxLimit. Pages that start past
// query.MaxOffset are rejected.
func pagination(v url.Values) (page, limit int, err error) {
	page, limit = 1, query.DefaultLimit
	if raw := v.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, domain.NewValidationError("page", "must be a positive integer")
		}
	}
	if raw := v.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, domain.NewValidationError("limit", "must be a positive integer")
		}
	}
	limit = min(limit, query.MaxLimit)
	if page-1 > query.MaxOffset/limit {
		return 0, 0, domain.NewValidationError("page", fmt.Sprintf("too large (offset max %d)", query.MaxOffset))
	}
	return page, limit, nil
}

func populateParam(v url.Values) (bool, error) {
	raw := v.Get("populate")
	if raw == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.NewValidationError("populate", "expected boolean")
	}
	return b, nil
}

// filterParams collects every non-reserved parameter. Repeated parameters
// keep their first value.
func filterParams(v url.Values) map[string]string {
	out := make(map[string]string)
	for k, vals := range v {
		if reservedParams[k] || len(vals) == 0 {
			continue
		}
		out[k] = vals[0]
	}
	return out
}

// typesParam accepts repeated and comma separated type parameters.
func typesParam(v url.Values) ([]entity.Type, error) {
	var names []string
	for _, raw := range v["type"] {
		for _, n := range strings.Split(raw, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}
	types, err := entity.ParseList(names)
	if err != nil {
		return nil, domain.NewValidationError("type", err.Error())
	}
	return types, nil
}
