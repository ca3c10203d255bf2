// Package report aggregates the figures shown on the admin dashboard.
package report

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/grade"
	"github.com/trezcool/eskwela/core/graderequest"
	"github.com/trezcool/eskwela/core/notification"
	"github.com/trezcool/eskwela/core/teacher"
)

type Summary struct {
	TotalStudents            int                    `json:"total_students"`
	TeachersByStatus         map[string]int         `json:"teachers_by_status"`
	PendingGradeRequests     int                    `json:"pending_grade_requests"`
	UnreadAdminNotifications int                    `json:"unread_admin_notifications"`
	SectionAverages          []grade.SectionAverage `json:"section_averages"`
	GeneratedAt              time.Time              `json:"generated_at"`
}

type Service struct {
	gradeSvc   *grade.Service
	teacherSvc *teacher.Service
	requestSvc *graderequest.Service
	notifSvc   *notification.Service
}

func NewService(
	gradeSvc *grade.Service,
	teacherSvc *teacher.Service,
	requestSvc *graderequest.Service,
	notifSvc *notification.Service,
) *Service {
	return &Service{
		gradeSvc:   gradeSvc,
		teacherSvc: teacherSvc,
		requestSvc: requestSvc,
		notifSvc:   notifSvc,
	}
}

// Summary computes the dashboard figures as seen by the admin p.
func (svc *Service) Summary(ctx context.Context, p account.Principal) (Summary, error) {
	var (
		sum Summary
		err error
	)
	if sum.SectionAverages, sum.TotalStudents, err = svc.gradeSvc.SectionAverages(ctx); err != nil {
		return Summary{}, errors.Wrap(err, "computing section averages")
	}
	if sum.TeachersByStatus, err = svc.teacherSvc.CountByStatus(ctx); err != nil {
		return Summary{}, errors.Wrap(err, "counting teachers")
	}
	if sum.PendingGradeRequests, err = svc.requestSvc.CountPending(ctx); err != nil {
		return Summary{}, errors.Wrap(err, "counting pending grade requests")
	}
	if sum.UnreadAdminNotifications, err = svc.notifSvc.CountUnread(ctx, p); err != nil {
		return Summary{}, errors.Wrap(err, "counting unread notifications")
	}
	sum.GeneratedAt = time.Now().UTC()
	return sum, nil
}
