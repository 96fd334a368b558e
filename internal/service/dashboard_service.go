package service

import "context"

type DashboardService struct {
	forms     *FormService
	subs      *SubmissionService
	docs      *DocumentService
	users     *UserService
	approvals *ApprovalService
}

func NewDashboardService(forms *FormService, subs *SubmissionService, docs *DocumentService, users *UserService, approvals *ApprovalService) *DashboardService {
	return &DashboardService{forms: forms, subs: subs, docs: docs, users: users, approvals: approvals}
}

type FormStat struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	FieldCount      int    `json:"fieldCount"`
	SubmissionCount int    `json:"submissionCount"`
	ApprovalStatus  string `json:"approvalStatus,omitempty"`
	CreatedAt       string `json:"createdAt"`
}

type Dashboard struct {
	FormCount       int        `json:"formCount"`
	SubmissionCount int        `json:"submissionCount"`
	DocumentCount   int        `json:"documentCount"`
	UserCount       int        `json:"userCount"`
	Forms           []FormStat `json:"forms"`
}

// Summary collects the counts shown on the landing page. ApprovalStatus is
// the outcome of the form's process, if it has one.
func (s *DashboardService) Summary(ctx context.Context) (*Dashboard, error) {
	forms, err := s.forms.List(ctx)
	if err != nil {
		return nil, err
	}
	out := &Dashboard{FormCount: len(forms), Forms: make([]FormStat, 0, len(forms))}
	for _, f := range forms {
		n, err := s.subs.CountByForm(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		stat := FormStat{ID: f.ID, Title: f.Title, FieldCount: len(f.Fields), SubmissionCount: n, CreatedAt: f.CreatedAt}
		if proc, err := s.approvals.ForForm(ctx, f.ID); err == nil {
			stat.ApprovalStatus = string(proc.Outcome())
		}
		out.SubmissionCount += n
		out.Forms = append(out.Forms, stat)
	}
	if out.DocumentCount, err = s.docs.Count(ctx); err != nil {
		return nil, err
	}
	if out.UserCount, err = s.users.Count(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
