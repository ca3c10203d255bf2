package grade

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/graderequest"
	"github.com/trezcool/eskwela/core/student"
)

type Repository interface {
	// GradesOf returns the grades of the given students, ordered by student then subject.
	GradesOf(ctx context.Context, studentIDs ...int64) ([]Grade, error)
	// ReplaceGrades atomically replaces every grade of a student, stores their final average
	// and marks the given approved grade requests completed. It fails with a conflict error
	// if one of the requests is no longer approved.
	ReplaceGrades(ctx context.Context, studentID int64, grades []Grade, average float64, completedRequestIDs []int64) error
	// SetAverages stores the final average of each student.
	SetAverages(ctx context.Context, averages map[int64]float64) error
}

type Service struct {
	repo       Repository
	studentSvc *student.Service
	requestSvc *graderequest.Service
	cal        Calendar
	nowFunc    func() time.Time
}

func NewService(repo Repository, studentSvc *student.Service, requestSvc *graderequest.Service, cal Calendar) *Service {
	return &Service{
		repo:       repo,
		studentSvc: studentSvc,
		requestSvc: requestSvc,
		cal:        cal,
		nowFunc:    time.Now,
	}
}

// StudentWithGrades returns a student along with their grades and averages.
func (svc *Service) StudentWithGrades(ctx context.Context, id int64) (StudentGrades, error) {
	st, err := svc.studentSvc.GetByID(ctx, id)
	if err != nil {
		return StudentGrades{}, err
	}
	grades, err := svc.repo.GradesOf(ctx, st.ID)
	if err != nil {
		return StudentGrades{}, errors.Wrap(err, "querying grades")
	}
	return newStudentGrades(st, grades), nil
}

// AllWithGrades returns the matching students along with their grades and averages.
func (svc *Service) AllWithGrades(ctx context.Context, filter student.QueryFilter, ordering []core.DBOrdering) ([]StudentGrades, error) {
	students, err := svc.studentSvc.Query(ctx, filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	if len(students) == 0 {
		return []StudentGrades{}, nil
	}

	ids := make([]int64, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	grades, err := svc.repo.GradesOf(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	byStudent := make(map[int64][]Grade, len(students))
	for _, g := range grades {
		byStudent[g.StudentID] = append(byStudent[g.StudentID], g)
	}

	res := make([]StudentGrades, 0, len(students))
	for _, st := range students {
		res = append(res, newStudentGrades(st, byStudent[st.ID]))
	}
	return res, nil
}

// Lock returns the current quarter of a student and the status of each of their quarters,
// as seen by viewer: teachers only see the quarters their own approved requests unlock.
func (svc *Service) Lock(ctx context.Context, viewer account.Principal, studentID int64) (Lock, error) {
	st, err := svc.studentSvc.GetByID(ctx, studentID)
	if err != nil {
		return Lock{}, err
	}
	grades, err := svc.repo.GradesOf(ctx, st.ID)
	if err != nil {
		return Lock{}, errors.Wrap(err, "querying grades")
	}
	pending, _, err := svc.requestedQuarters(ctx, st.ID, 0, graderequest.StatusPending)
	if err != nil {
		return Lock{}, err
	}
	var approvedBy int64
	if viewer.IsTeacher() {
		approvedBy = viewer.ID
	}
	approved, _, err := svc.requestedQuarters(ctx, st.ID, approvedBy, graderequest.StatusApproved)
	if err != nil {
		return Lock{}, err
	}
	current := svc.cal.CurrentQuarter(grades, svc.nowFunc())
	return newLock(st.ID, current, grades, pending, approved), nil
}

// Replace replaces all the grades of a student with a validated ReplaceGrades and stores
// their final average.
// Teachers may only change the scores of the current quarter, or of a quarter they hold an
// approved grade request for; that request is then completed. Admins may change any quarter.
func (svc *Service) Replace(ctx context.Context, editor account.Principal, studentID int64, rg ReplaceGrades) (StudentGrades, error) {
	if !editor.IsStaff() {
		return StudentGrades{}, core.NewPermissionError("only teachers and admins can edit grades")
	}

	st, err := svc.studentSvc.GetByID(ctx, studentID)
	if err != nil {
		return StudentGrades{}, err
	}
	existing, err := svc.repo.GradesOf(ctx, st.ID)
	if err != nil {
		return StudentGrades{}, errors.Wrap(err, "querying grades")
	}
	grades := rg.toGrades(st.ID)

	var completed []int64
	if editor.IsTeacher() {
		if completed, err = svc.checkLock(ctx, editor.ID, st.ID, existing, grades); err != nil {
			return StudentGrades{}, err
		}
	}

	if err = svc.repo.ReplaceGrades(ctx, st.ID, grades, FinalAverage(grades), completed); err != nil {
		return StudentGrades{}, errors.Wrap(err, "replacing grades")
	}
	return svc.StudentWithGrades(ctx, st.ID)
}

// checkLock returns the IDs of the approved requests of the teacher consumed by replacing
// existing with grades, or a permission error if a locked quarter would change.
func (svc *Service) checkLock(ctx context.Context, teacherID, studentID int64, existing, grades []Grade) ([]int64, error) {
	changed := changedQuarters(existing, grades)
	if len(changed) == 0 {
		return nil, nil
	}

	current := svc.cal.CurrentQuarter(existing, svc.nowFunc())
	approved, requestIDs, err := svc.requestedQuarters(ctx, studentID, teacherID, graderequest.StatusApproved)
	if err != nil {
		return nil, err
	}

	var locked []string
	var completed []int64
	for _, q := range sortedQuarters(changed) {
		if approved[q] {
			completed = append(completed, requestIDs[q]...)
		} else if q != current {
			locked = append(locked, fmt.Sprintf("Q%d", q))
		}
	}
	if len(locked) > 0 {
		return nil, core.NewPermissionError(fmt.Sprintf(
			"%s grades are locked: request an edit from the administration", strings.Join(locked, ", ")))
	}
	return completed, nil
}

// requestedQuarters returns the quarters of the student's grade requests having status,
// and the IDs of those requests per quarter. A teacherID of 0 matches every teacher.
func (svc *Service) requestedQuarters(ctx context.Context, studentID, teacherID int64, status string) (map[Quarter]bool, map[Quarter][]int64, error) {
	reqs, err := svc.requestSvc.ByStatus(ctx, studentID, teacherID, status)
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying grade requests")
	}
	quarters := make(map[Quarter]bool, len(reqs))
	ids := make(map[Quarter][]int64, len(reqs))
	for _, r := range reqs {
		q := Quarter(r.Quarter)
		quarters[q] = true
		ids[q] = append(ids[q], r.ID)
	}
	return quarters, ids, nil
}

// changedQuarters returns the quarters whose score differs, for any subject, between before and after.
// A removed subject changes every quarter it had a score for.
func changedQuarters(before, after []Grade) map[Quarter]bool {
	changed := make(map[Quarter]bool, 4)
	prev := make(map[string]Grade, len(before))
	for _, g := range before {
		prev[g.subjectKey()] = g
	}

	for _, g := range after {
		old := prev[g.subjectKey()]
		delete(prev, g.subjectKey())
		for q := Quarter(1); q <= 4; q++ {
			if !sameScore(old.Quarter(q), g.Quarter(q)) {
				changed[q] = true
			}
		}
	}
	for _, removed := range prev {
		for q := Quarter(1); q <= 4; q++ {
			if removed.Quarter(q).Valid {
				changed[q] = true
			}
		}
	}
	return changed
}

// RecomputeAverages recomputes and stores the final average of every student.
// It returns the number of students whose stored average changed.
func (svc *Service) RecomputeAverages(ctx context.Context) (int, error) {
	all, err := svc.AllWithGrades(ctx, student.QueryFilter{}, nil)
	if err != nil {
		return 0, err
	}

	averages := make(map[int64]float64)
	for _, sg := range all {
		if !sameScoreFloat(sg.Average, sg.FinalAverage) {
			averages[sg.ID] = sg.FinalAverage
		}
	}
	if len(averages) == 0 {
		return 0, nil
	}
	if err = svc.repo.SetAverages(ctx, averages); err != nil {
		return 0, errors.Wrap(err, "storing averages")
	}
	return len(averages), nil
}

func sameScoreFloat(a, b float64) bool {
	d := a - b
	return d < 0.005 && d > -0.005
}

// SectionAverage is the mean of the stored final averages of a grade level and section.
type SectionAverage struct {
	GradeLevel int     `json:"grade_level"`
	Section    string  `json:"section"`
	Students   int     `json:"students"`
	Average    float64 `json:"average"`
}

// SectionAverages groups the stored final averages of every student by grade level and section.
func (svc *Service) SectionAverages(ctx context.Context) ([]SectionAverage, int, error) {
	students, err := svc.studentSvc.Query(ctx, student.QueryFilter{}, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying students")
	}

	type key struct {
		level   int
		section string
	}
	sums := make(map[key]*SectionAverage)
	for _, st := range students {
		k := key{st.GradeLevel, st.Section}
		sa, ok := sums[k]
		if !ok {
			sa = &SectionAverage{GradeLevel: st.GradeLevel, Section: st.Section}
			sums[k] = sa
		}
		sa.Students++
		sa.Average += st.Average
	}

	res := make([]SectionAverage, 0, len(sums))
	for _, sa := range sums {
		sa.Average = core.Round2(sa.Average / float64(sa.Students))
		res = append(res, *sa)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].GradeLevel != res[j].GradeLevel {
			return res[i].GradeLevel < res[j].GradeLevel
		}
		return res[i].Section < res[j].Section
	})
	return res, len(students), nil
}
