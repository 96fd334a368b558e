package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/uwamba/edms/internal/db"
	"github.com/uwamba/edms/internal/formengine"
	"github.com/uwamba/edms/internal/models"
	"github.com/uwamba/edms/internal/repository"
)

type SearchService struct {
	subs *repository.SubmissionRepo
}

func NewSearchService(subs *repository.SubmissionRepo) *SearchService {
	return &SearchService{subs: subs}
}

type SearchRequest struct {
	FormID    string      `json:"formId"`
	Filters   []Predicate `json:"filters,omitempty"`
	TextQuery string      `json:"textQuery,omitempty"`
	Skip      int         `json:"skip"`
	Limit     int         `json:"limit"`
}

// Predicate compares the stored value at a field path ("11", "5[0].6") with
// a literal, using the same operators as visibility conditions.
type Predicate struct {
	Field    string              `json:"field"`
	Operator formengine.Operator `json:"operator"`
	Value    any                 `json:"value"`
}

type SearchResult struct {
	Submissions []models.Submission `json:"submissions"`
	Total       int                 `json:"total"`
	Mode        string              `json:"mode"`
}

func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.Skip < 0 {
		req.Skip = 0
	}
	for _, p := range req.Filters {
		if _, err := formengine.ParsePath(p.Field); err != nil {
			return nil, invalid("filter field %q: %v", p.Field, err)
		}
		if !p.Operator.Valid() {
			return nil, invalid("filter operator %q", p.Operator)
		}
	}

	filter := db.Doc{}
	if req.FormID != "" {
		filter["formId"] = req.FormID
	}
	subs, err := s.subs.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	text := strings.ToLower(strings.TrimSpace(req.TextQuery))
	matched := make([]models.Submission, 0)
	for _, sub := range subs {
		if matchAll(sub.Data, req.Filters) && (text == "" || containsText(sub.Data, text)) {
			matched = append(matched, sub)
		}
	}

	page := []models.Submission{}
	if req.Skip < len(matched) {
		end := min(req.Skip+req.Limit, len(matched))
		page = matched[req.Skip:end]
	}
	return &SearchResult{Submissions: page, Total: len(matched), Mode: searchMode(req, text)}, nil
}

func searchMode(req SearchRequest, text string) string {
	switch {
	case len(req.Filters) > 0 && text != "":
		return "combined"
	case len(req.Filters) > 0:
		return "structured"
	case text != "":
		return "text"
	}
	return "all"
}

func matchAll(data map[string]any, preds []Predicate) bool {
	for _, p := range preds {
		if !formengine.Compare(p.Operator, data[p.Field], p.Value) {
			return false
		}
	}
	return true
}

// containsText reports whether any textual answer contains q.
func containsText(data map[string]any, q string) bool {
	for _, v := range data {
		switch t := v.(type) {
		case string:
			if strings.Contains(strings.ToLower(t), q) {
				return true
			}
		case []any:
			for _, e := range t {
				if s, ok := e.(string); ok && strings.Contains(strings.ToLower(s), q) {
					return true
				}
			}
		case map[string]any:
			if name, ok := t["fileName"].(string); ok && strings.Contains(strings.ToLower(name), q) {
				return true
			}
		case float64:
			if strings.Contains(fmt.Sprint(t), q) {
				return true
			}
		}
	}
	return false
}
