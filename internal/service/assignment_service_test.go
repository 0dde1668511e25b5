package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"classhub/internal/dto"
	"classhub/internal/model"
)

// ── 测试辅助 ──

var (
	teacherCaller  = Caller{UserID: "t1", Role: model.RoleTeacher}
	otherTeacher   = Caller{UserID: "t2", Role: model.RoleTeacher}
	studentCaller  = Caller{UserID: "s1", Role: model.RoleStudent}
	student2Caller = Caller{UserID: "s2", Role: model.RoleStudent}
	outsider       = Caller{UserID: "s3", Role: model.RoleStudent}
)

type assignmentFixture struct {
	svc      *assignmentService
	db       *memDB
	store    *mockStore
	notifier *mockNotifier
}

func setupTestAssignmentService() *assignmentFixture {
	db := newMemDB()
	seedUser(db, "t1", "Teacher One", model.RoleTeacher)
	seedUser(db, "t2", "Teacher Two", model.RoleTeacher)
	seedUser(db, "s1", "Alice", model.RoleStudent)
	seedUser(db, "s2", "Bob", model.RoleStudent)
	seedUser(db, "s3", "Carol", model.RoleStudent)
	seedClassroom(db, "c1", "t1", "s1", "s2")
	seedClassroom(db, "c2", "t2")

	store := newMockStore()
	notifier := &mockNotifier{}
	svc := NewAssignmentService(newMockRepository(db), store, notifier, zap.NewNop()).(*assignmentService)
	return &assignmentFixture{svc: svc, db: db, store: store, notifier: notifier}
}

func (f *assignmentFixture) create(t *testing.T, req *dto.CreateAssignmentRequest, files ...string) *dto.AssignmentResponse {
	t.Helper()
	if req.ClassroomID == "" {
		req.ClassroomID = "c1"
	}
	resp, err := f.svc.Create(context.Background(), teacherCaller, req, fileHeaders(files...))
	if err != nil {
		t.Fatalf("Create 应成功，但返回错误: %v", err)
	}
	return resp
}

func (f *assignmentFixture) setNow(t time.Time) {
	f.svc.now = func() time.Time { return t }
}

func ptr[T any](v T) *T { return &v }

// ── Classify 测试 ──

func TestClassify(t *testing.T) {
	due := time.Date(2025, 1, 10, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name        string
		due         *time.Time
		submittedAt time.Time
		want        SubmissionTiming
	}{
		{"无截止时间", nil, due.AddDate(1, 0, 0), TimingOnTime},
		{"截止前", &due, due.Add(-time.Hour), TimingOnTime},
		{"恰好截止", &due, due, TimingOnTime},
		{"截止后六分钟", &due, time.Date(2025, 1, 11, 0, 5, 0, 0, time.UTC), TimingLate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.due, tt.submittedAt); got != tt.want {
				t.Errorf("期望 %s，实际: %s", tt.want, got)
			}
		})
	}
}

// ── Create 测试 ──

func TestCreate_Defaults(t *testing.T) {
	f := setupTestAssignmentService()

	resp := f.create(t, &dto.CreateAssignmentRequest{Title: "  Essay 1  "})

	if resp.Title != "Essay 1" {
		t.Errorf("期望标题去除首尾空格，实际: %q", resp.Title)
	}
	if resp.Points != 100 {
		t.Errorf("期望默认满分 100，实际: %d", resp.Points)
	}
	if !resp.IsPublished || !resp.CollectSubmissions {
		t.Errorf("期望默认发布并收取提交，实际: published=%v collect=%v", resp.IsPublished, resp.CollectSubmissions)
	}
	if resp.TeacherID != "t1" {
		t.Errorf("期望 teacher 默认为调用者，实际: %s", resp.TeacherID)
	}
	if resp.Submissions == nil || len(resp.Submissions) != 0 {
		t.Errorf("期望空提交列表，实际: %v", resp.Submissions)
	}

	classroom := f.db.classrooms["c1"]
	if !classroom.AssignmentIDs.Contains(resp.AssignmentID) {
		t.Errorf("班级作业列表应包含新作业，实际: %v", classroom.AssignmentIDs)
	}

	if len(f.notifier.posted) != 1 {
		t.Fatalf("期望发送 1 次新作业通知，实际: %d", len(f.notifier.posted))
	}
	if got := len(f.notifier.posted[0].recipients); got != 2 {
		t.Errorf("期望通知 2 名学生，实际: %d", got)
	}
}

func TestCreate_ExplicitFields(t *testing.T) {
	f := setupTestAssignmentService()
	due := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("UTC+8", 8*3600))

	resp := f.create(t, &dto.CreateAssignmentRequest{
		Title:              "Lab",
		DueDate:            &due,
		Points:             ptr(0),
		CollectSubmissions: ptr(false),
	})

	if resp.Points != 0 {
		t.Errorf("期望满分 0，实际: %d", resp.Points)
	}
	if resp.CollectSubmissions {
		t.Error("collect_submissions 应为 false")
	}
	if resp.DueDate == nil || *resp.DueDate != "2025-03-01T04:00:00Z" {
		t.Errorf("期望截止时间按 UTC 输出，实际: %v", resp.DueDate)
	}
}

func TestCreate_MissingField(t *testing.T) {
	f := setupTestAssignmentService()

	_, err := f.svc.Create(context.Background(), teacherCaller, &dto.CreateAssignmentRequest{Title: "x"}, nil)
	if !errors.Is(err, ErrMissingField) {
		t.Errorf("期望 ErrMissingField，实际: %v", err)
	}
}

func TestCreate_TitleRequired(t *testing.T) {
	f := setupTestAssignmentService()

	_, err := f.svc.Create(context.Background(), teacherCaller, &dto.CreateAssignmentRequest{Title: "   ", ClassroomID: "c1"}, nil)
	if !errors.Is(err, ErrTitleRequired) {
		t.Errorf("期望 ErrTitleRequired，实际: %v", err)
	}
}

func TestCreate_NegativePoints(t *testing.T) {
	f := setupTestAssignmentService()

	_, err := f.svc.Create(context.Background(), teacherCaller, &dto.CreateAssignmentRequest{
		Title: "x", ClassroomID: "c1", Points: ptr(-1),
	}, nil)
	if !errors.Is(err, ErrInvalidPoints) {
		t.Errorf("期望 ErrInvalidPoints，实际: %v", err)
	}
}

func TestCreate_NotTeacher(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, studentCaller, &dto.CreateAssignmentRequest{Title: "x", ClassroomID: "c1"}, nil)
	if !errors.Is(err, ErrNotTeacher) {
		t.Errorf("学生创建作业：期望 ErrNotTeacher，实际: %v", err)
	}

	// 冒充他人
	_, err = f.svc.Create(ctx, teacherCaller, &dto.CreateAssignmentRequest{Title: "x", ClassroomID: "c1", TeacherID: "t2"}, nil)
	if !errors.Is(err, ErrNotTeacher) {
		t.Errorf("teacher 与调用者不一致：期望 ErrNotTeacher，实际: %v", err)
	}
}

func TestCreate_ClassroomChecks(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, teacherCaller, &dto.CreateAssignmentRequest{Title: "x", ClassroomID: "missing"}, nil)
	if !errors.Is(err, ErrClassroomNotFound) {
		t.Errorf("期望 ErrClassroomNotFound，实际: %v", err)
	}

	_, err = f.svc.Create(ctx, teacherCaller, &dto.CreateAssignmentRequest{Title: "x", ClassroomID: "c2"}, nil)
	if !errors.Is(err, ErrClassroomAccessDenied) {
		t.Errorf("非任课教师：期望 ErrClassroomAccessDenied，实际: %v", err)
	}
	if len(f.db.assignments) != 0 {
		t.Errorf("失败时不应写入作业，实际: %d", len(f.db.assignments))
	}
}

func TestCreate_UploadFailureSkipped(t *testing.T) {
	f := setupTestAssignmentService()
	f.store.failNames["broken.pdf"] = true

	resp := f.create(t, &dto.CreateAssignmentRequest{Title: "With files"}, "brief.pdf", "broken.pdf")

	if len(resp.Attachments) != 1 || resp.Attachments[0].Filename != "brief.pdf" {
		t.Errorf("期望仅保留上传成功的附件，实际: %+v", resp.Attachments)
	}
}

// ── Submit 测试 ──

func TestSubmit_LateClassification(t *testing.T) {
	f := setupTestAssignmentService()
	due := time.Date(2025, 1, 10, 23, 59, 0, 0, time.UTC)
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Essay", DueDate: &due})

	f.setNow(time.Date(2025, 1, 11, 0, 5, 0, 0, time.UTC))
	sub, err := f.svc.Submit(context.Background(), studentCaller, a.AssignmentID, fileHeaders("essay.pdf"))
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if sub.Status != string(TimingLate) {
		t.Errorf("期望 late，实际: %s", sub.Status)
	}
	if sub.SubmittedAt != "2025-01-11T00:05:00Z" {
		t.Errorf("期望 submitted_at=2025-01-11T00:05:00Z，实际: %s", sub.SubmittedAt)
	}
	if len(sub.Attachments) != 1 {
		t.Errorf("期望 1 个附件，实际: %d", len(sub.Attachments))
	}

	// 教师视角同样计算为 late
	view, err := f.svc.Get(context.Background(), teacherCaller, a.AssignmentID)
	if err != nil {
		t.Fatalf("Get 应成功: %v", err)
	}
	if len(view.Submissions) != 1 || view.Submissions[0].Status != string(TimingLate) {
		t.Errorf("教师视角期望 1 条 late 提交，实际: %+v", view.Submissions)
	}
}

func TestSubmit_Twice(t *testing.T) {
	f := setupTestAssignmentService()
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Essay"})
	ctx := context.Background()

	if _, err := f.svc.Submit(ctx, studentCaller, a.AssignmentID, fileHeaders("v1.pdf")); err != nil {
		t.Fatalf("首次提交应成功: %v", err)
	}
	_, err := f.svc.Submit(ctx, studentCaller, a.AssignmentID, fileHeaders("v2.pdf"))
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("期望 ErrAlreadySubmitted，实际: %v", err)
	}
	if got := f.store.stored(); got != 1 {
		t.Errorf("重复提交不应留下新文件，实际存储中 %d 个", got)
	}
}

func TestSubmit_Concurrent(t *testing.T) {
	f := setupTestAssignmentService()
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Race"})

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.MarkDone(context.Background(), studentCaller, a.AssignmentID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrAlreadySubmitted):
				rejected++
			default:
				t.Errorf("意外错误: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || rejected != n-1 {
		t.Errorf("期望 1 次成功 %d 次拒绝，实际: %d / %d", n-1, succeeded, rejected)
	}
}

func TestSubmit_Gates(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()
	open := f.create(t, &dto.CreateAssignmentRequest{Title: "Open"})
	closed := f.create(t, &dto.CreateAssignmentRequest{Title: "Closed", CollectSubmissions: ptr(false)})

	if _, err := f.svc.Submit(ctx, outsider, open.AssignmentID, nil); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("未加入班级：期望 ErrNotEnrolled，实际: %v", err)
	}
	if _, err := f.svc.Submit(ctx, studentCaller, closed.AssignmentID, nil); !errors.Is(err, ErrSubmissionsClosed) {
		t.Errorf("不收取提交：期望 ErrSubmissionsClosed，实际: %v", err)
	}
	if _, err := f.svc.Submit(ctx, studentCaller, "missing", nil); !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("作业不存在：期望 ErrAssignmentNotFound，实际: %v", err)
	}

	// 未加入班级优先于不收取提交
	if _, err := f.svc.Submit(ctx, outsider, closed.AssignmentID, nil); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("期望 ErrNotEnrolled 优先，实际: %v", err)
	}

	if _, err := f.svc.TogglePublish(ctx, teacherCaller, open.AssignmentID); err != nil {
		t.Fatalf("TogglePublish 应成功: %v", err)
	}
	if _, err := f.svc.Submit(ctx, studentCaller, open.AssignmentID, nil); !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("未发布作业：期望 ErrAssignmentNotFound，实际: %v", err)
	}
}

func TestSubmit_AllUploadsFail(t *testing.T) {
	f := setupTestAssignmentService()
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Essay"})
	f.store.failNames["a.pdf"] = true
	f.store.failNames["b.pdf"] = true

	_, err := f.svc.Submit(context.Background(), studentCaller, a.AssignmentID, fileHeaders("a.pdf", "b.pdf"))
	if !errors.Is(err, ErrAttachmentUpload) {
		t.Errorf("期望 ErrAttachmentUpload，实际: %v", err)
	}
	if len(f.db.submissions) != 0 {
		t.Errorf("上传全部失败时不应创建提交，实际: %d", len(f.db.submissions))
	}
}

// ── Grade 测试 ──

func TestGrade_KeepsSubmission(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Essay"})

	f.setNow(time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC))
	before, err := f.svc.Submit(ctx, studentCaller, a.AssignmentID, fileHeaders("essay.pdf"))
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}

	f.setNow(time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC))
	graded, err := f.svc.Grade(ctx, teacherCaller, a.AssignmentID, "s1", &dto.GradeRequest{
		Grade:    ptr(87.5),
		Feedback: ptr("  Good work  "),
	})
	if err != nil {
		t.Fatalf("Grade 应成功: %v", err)
	}

	if !graded.IsGraded || graded.Grade == nil || *graded.Grade != 87.5 {
		t.Errorf("期望 is_graded=true grade=87.5，实际: %+v", graded)
	}
	if graded.Feedback == nil || *graded.Feedback != "Good work" {
		t.Errorf("期望评语去除首尾空格，实际: %v", graded.Feedback)
	}
	if graded.SubmittedAt != before.SubmittedAt {
		t.Errorf("批改不应改变提交时间，期望 %s，实际: %s", before.SubmittedAt, graded.SubmittedAt)
	}
	if len(graded.Attachments) != 1 {
		t.Errorf("批改不应改变附件，实际: %d", len(graded.Attachments))
	}

	// 再次批改覆盖
	again, err := f.svc.Grade(ctx, teacherCaller, a.AssignmentID, "s1", &dto.GradeRequest{Grade: ptr(120.0)})
	if err != nil {
		t.Fatalf("重新批改应成功: %v", err)
	}
	if *again.Grade != 120 {
		t.Errorf("期望成绩 120（不校验满分），实际: %v", *again.Grade)
	}
}

func TestGrade_Errors(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Essay"})

	_, err := f.svc.Grade(ctx, otherTeacher, a.AssignmentID, "s1", &dto.GradeRequest{Grade: ptr(1.0)})
	if !errors.Is(err, ErrNotAssignmentOwner) {
		t.Errorf("非作业教师：期望 ErrNotAssignmentOwner，实际: %v", err)
	}

	_, err = f.svc.Grade(ctx, teacherCaller, a.AssignmentID, "s2", &dto.GradeRequest{Grade: ptr(1.0)})
	if !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("无提交：期望 ErrSubmissionNotFound，实际: %v", err)
	}

	_, err = f.svc.Grade(ctx, teacherCaller, a.AssignmentID, "", &dto.GradeRequest{Grade: ptr(1.0)})
	if !errors.Is(err, ErrMissingField) {
		t.Errorf("缺少 student：期望 ErrMissingField，实际: %v", err)
	}
}

// ── Unsubmit 测试 ──

func TestUnsubmit_RemovesSubmission(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Essay"})

	if _, err := f.svc.Submit(ctx, studentCaller, a.AssignmentID, fileHeaders("essay.pdf")); err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if _, err := f.svc.Grade(ctx, teacherCaller, a.AssignmentID, "s1", &dto.GradeRequest{Grade: ptr(90.0)}); err != nil {
		t.Fatalf("Grade 应成功: %v", err)
	}

	// 已批改也可撤回
	if err := f.svc.Unsubmit(ctx, studentCaller, a.AssignmentID); err != nil {
		t.Fatalf("Unsubmit 应成功: %v", err)
	}
	if len(f.db.submissions) != 0 {
		t.Errorf("撤回后不应保留提交，实际: %d", len(f.db.submissions))
	}
	if len(f.store.removed) != 1 {
		t.Errorf("撤回后应删除提交附件，实际删除: %v", f.store.removed)
	}

	// 撤回后可重新提交
	if _, err := f.svc.MarkDone(ctx, studentCaller, a.AssignmentID); err != nil {
		t.Errorf("撤回后应可重新提交: %v", err)
	}
}

func TestUnsubmit_Errors(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Essay"})

	if err := f.svc.Unsubmit(ctx, studentCaller, a.AssignmentID); !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("无提交：期望 ErrSubmissionNotFound，实际: %v", err)
	}
	if err := f.svc.Unsubmit(ctx, outsider, a.AssignmentID); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("未加入班级：期望 ErrNotEnrolled，实际: %v", err)
	}
}

func TestUnsubmit_Unpublished(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()
	draft := f.create(t, &dto.CreateAssignmentRequest{Title: "Draft"})
	if _, err := f.svc.TogglePublish(ctx, teacherCaller, draft.AssignmentID); err != nil {
		t.Fatalf("TogglePublish 应成功: %v", err)
	}

	// 未发布作业与不存在的作业返回相同错误
	if err := f.svc.Unsubmit(ctx, studentCaller, draft.AssignmentID); !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("未发布作业：期望 ErrAssignmentNotFound，实际: %v", err)
	}
	if err := f.svc.Unsubmit(ctx, studentCaller, "does-not-exist"); !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("不存在的作业：期望 ErrAssignmentNotFound，实际: %v", err)
	}

	// 提交后再取消发布，学生仍可撤回
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Essay"})
	if _, err := f.svc.MarkDone(ctx, studentCaller, a.AssignmentID); err != nil {
		t.Fatalf("MarkDone 应成功: %v", err)
	}
	if _, err := f.svc.TogglePublish(ctx, teacherCaller, a.AssignmentID); err != nil {
		t.Fatalf("TogglePublish 应成功: %v", err)
	}
	if err := f.svc.Unsubmit(ctx, studentCaller, a.AssignmentID); err != nil {
		t.Errorf("已有提交时应可撤回: %v", err)
	}
}

// ── 读取与可见性测试 ──

func TestGet_Visibility(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Draft"})
	if _, err := f.svc.TogglePublish(ctx, teacherCaller, a.AssignmentID); err != nil {
		t.Fatalf("TogglePublish 应成功: %v", err)
	}

	if _, err := f.svc.Get(ctx, studentCaller, a.AssignmentID); !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("学生读取未发布作业：期望 ErrAssignmentNotFound，实际: %v", err)
	}
	view, err := f.svc.Get(ctx, teacherCaller, a.AssignmentID)
	if err != nil {
		t.Fatalf("教师应能读取未发布作业: %v", err)
	}
	if view.IsPublished {
		t.Error("期望 is_published=false")
	}
	if _, err := f.svc.Get(ctx, outsider, a.AssignmentID); !errors.Is(err, ErrClassroomAccessDenied) {
		t.Errorf("非班级成员：期望 ErrClassroomAccessDenied，实际: %v", err)
	}
}

func TestGet_StudentSeesOwnSubmissionOnly(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Essay"})

	for _, c := range []Caller{studentCaller, student2Caller} {
		if _, err := f.svc.MarkDone(ctx, c, a.AssignmentID); err != nil {
			t.Fatalf("MarkDone 应成功: %v", err)
		}
	}

	view, err := f.svc.Get(ctx, studentCaller, a.AssignmentID)
	if err != nil {
		t.Fatalf("Get 应成功: %v", err)
	}
	if len(view.Submissions) != 1 || view.Submissions[0].StudentID != "s1" {
		t.Errorf("学生应只看到自己的提交，实际: %+v", view.Submissions)
	}
	if view.SubmissionStatus == nil || !view.SubmissionStatus.Submitted {
		t.Errorf("期望 submission_status.submitted=true，实际: %+v", view.SubmissionStatus)
	}
	if view.SubmissionCount != nil {
		t.Error("学生视角不应返回提交计数")
	}

	teacherView, err := f.svc.Get(ctx, teacherCaller, a.AssignmentID)
	if err != nil {
		t.Fatalf("Get 应成功: %v", err)
	}
	if len(teacherView.Submissions) != 2 || *teacherView.SubmissionCount != 2 {
		t.Errorf("教师应看到全部 2 条提交，实际: %d", len(teacherView.Submissions))
	}
}

func TestListByClassroom(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()
	first := f.create(t, &dto.CreateAssignmentRequest{Title: "First"})
	hidden := f.create(t, &dto.CreateAssignmentRequest{Title: "Hidden"})
	last := f.create(t, &dto.CreateAssignmentRequest{Title: "Last"})
	if _, err := f.svc.TogglePublish(ctx, teacherCaller, hidden.AssignmentID); err != nil {
		t.Fatalf("TogglePublish 应成功: %v", err)
	}
	if _, err := f.svc.MarkDone(ctx, studentCaller, first.AssignmentID); err != nil {
		t.Fatalf("MarkDone 应成功: %v", err)
	}
	if _, err := f.svc.Grade(ctx, teacherCaller, first.AssignmentID, "s1", &dto.GradeRequest{Grade: ptr(10.0)}); err != nil {
		t.Fatalf("Grade 应成功: %v", err)
	}

	teacherList, err := f.svc.ListByClassroom(ctx, teacherCaller, "c1")
	if err != nil {
		t.Fatalf("ListByClassroom 应成功: %v", err)
	}
	if len(teacherList) != 3 {
		t.Fatalf("教师应看到 3 个作业，实际: %d", len(teacherList))
	}
	if teacherList[0].AssignmentID != last.AssignmentID {
		t.Errorf("期望按创建时间倒序，首个应为 %s，实际: %s", last.AssignmentID, teacherList[0].AssignmentID)
	}
	firstView := teacherList[2]
	if *firstView.SubmissionCount != 1 || *firstView.GradedCount != 1 {
		t.Errorf("期望提交 1 / 已批改 1，实际: %d / %d", *firstView.SubmissionCount, *firstView.GradedCount)
	}

	studentList, err := f.svc.ListByClassroom(ctx, student2Caller, "c1")
	if err != nil {
		t.Fatalf("ListByClassroom 应成功: %v", err)
	}
	if len(studentList) != 2 {
		t.Fatalf("学生只应看到 2 个已发布作业，实际: %d", len(studentList))
	}
	for _, a := range studentList {
		if a.SubmissionStatus == nil || a.SubmissionStatus.Submitted {
			t.Errorf("s2 未提交任何作业，实际: %+v", a.SubmissionStatus)
		}
		if len(a.Submissions) != 0 {
			t.Errorf("学生不应看到他人提交，实际: %d", len(a.Submissions))
		}
	}

	if _, err := f.svc.ListByClassroom(ctx, outsider, "c1"); !errors.Is(err, ErrClassroomAccessDenied) {
		t.Errorf("期望 ErrClassroomAccessDenied，实际: %v", err)
	}
}

// ── Comment 测试 ──

func TestAddComment(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Essay"})

	if _, err := f.svc.AddComment(ctx, studentCaller, a.AssignmentID, "   "); !errors.Is(err, ErrCommentEmpty) {
		t.Errorf("期望 ErrCommentEmpty，实际: %v", err)
	}
	if _, err := f.svc.AddComment(ctx, outsider, a.AssignmentID, "hi"); !errors.Is(err, ErrClassroomAccessDenied) {
		t.Errorf("期望 ErrClassroomAccessDenied，实际: %v", err)
	}

	c, err := f.svc.AddComment(ctx, studentCaller, a.AssignmentID, " When is it due? ")
	if err != nil {
		t.Fatalf("AddComment 应成功: %v", err)
	}
	if c.Text != "When is it due?" || c.Author == nil || c.Author.Name != "Alice" {
		t.Errorf("评论内容或作者不符，实际: %+v", c)
	}
	if _, err := f.svc.AddComment(ctx, teacherCaller, a.AssignmentID, "Friday"); err != nil {
		t.Fatalf("教师评论应成功: %v", err)
	}

	view, err := f.svc.Get(ctx, student2Caller, a.AssignmentID)
	if err != nil {
		t.Fatalf("Get 应成功: %v", err)
	}
	if len(view.Comments) != 2 || view.Comments[1].Text != "Friday" {
		t.Errorf("期望按时间顺序的 2 条评论，实际: %+v", view.Comments)
	}
}

// ── Update / Publish 测试 ──

func TestUpdate_Partial(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()
	due := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Essay", Description: "keep me", DueDate: &due}, "brief.pdf")

	updated, err := f.svc.Update(ctx, teacherCaller, a.AssignmentID, &dto.UpdateAssignmentRequest{
		Title:  ptr("Essay v2"),
		Points: ptr(50),
	}, fileHeaders("rubric.pdf"))
	if err != nil {
		t.Fatalf("Update 应成功: %v", err)
	}
	if updated.Title != "Essay v2" || updated.Points != 50 {
		t.Errorf("更新字段未生效，实际: %+v", updated)
	}
	if updated.Description != "keep me" || updated.DueDate == nil {
		t.Errorf("未提供的字段应保持不变，实际: %+v", updated)
	}
	if len(updated.Attachments) != 2 || updated.Attachments[1].Filename != "rubric.pdf" {
		t.Errorf("新附件应追加在后，实际: %+v", updated.Attachments)
	}

	cleared, err := f.svc.Update(ctx, teacherCaller, a.AssignmentID, &dto.UpdateAssignmentRequest{ClearDueDate: true}, nil)
	if err != nil {
		t.Fatalf("Update 应成功: %v", err)
	}
	if cleared.DueDate != nil {
		t.Errorf("截止时间应被清除，实际: %v", *cleared.DueDate)
	}

	if _, err := f.svc.Update(ctx, otherTeacher, a.AssignmentID, &dto.UpdateAssignmentRequest{Title: ptr("x")}, nil); !errors.Is(err, ErrNotAssignmentOwner) {
		t.Errorf("期望 ErrNotAssignmentOwner，实际: %v", err)
	}
	if _, err := f.svc.Update(ctx, teacherCaller, a.AssignmentID, &dto.UpdateAssignmentRequest{Title: ptr(" ")}, nil); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("期望 ErrTitleRequired，实际: %v", err)
	}
}

func TestTogglePublish(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Essay"})

	off, err := f.svc.TogglePublish(ctx, teacherCaller, a.AssignmentID)
	if err != nil || off.IsPublished {
		t.Fatalf("期望切换为未发布，实际: %+v, %v", off, err)
	}
	on, err := f.svc.TogglePublish(ctx, teacherCaller, a.AssignmentID)
	if err != nil || !on.IsPublished {
		t.Fatalf("期望切换回已发布，实际: %+v, %v", on, err)
	}
	if _, err := f.svc.TogglePublish(ctx, studentCaller, a.AssignmentID); !errors.Is(err, ErrNotAssignmentOwner) {
		t.Errorf("期望 ErrNotAssignmentOwner，实际: %v", err)
	}
}

// ── Delete 测试 ──

func TestDelete_Cascade(t *testing.T) {
	f := setupTestAssignmentService()
	ctx := context.Background()
	a := f.create(t, &dto.CreateAssignmentRequest{Title: "Essay"}, "brief.pdf")
	keep := f.create(t, &dto.CreateAssignmentRequest{Title: "Other"})

	if _, err := f.svc.Submit(ctx, studentCaller, a.AssignmentID, fileHeaders("essay.pdf")); err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if _, err := f.svc.AddComment(ctx, student2Caller, a.AssignmentID, "question"); err != nil {
		t.Fatalf("AddComment 应成功: %v", err)
	}

	if err := f.svc.Delete(ctx, studentCaller, a.AssignmentID); !errors.Is(err, ErrNotAssignmentOwner) {
		t.Errorf("学生删除：期望 ErrNotAssignmentOwner，实际: %v", err)
	}

	if err := f.svc.Delete(ctx, teacherCaller, a.AssignmentID); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}

	if _, err := f.svc.Get(ctx, teacherCaller, a.AssignmentID); !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("删除后期望 ErrAssignmentNotFound，实际: %v", err)
	}
	ids := f.db.classrooms["c1"].AssignmentIDs
	if ids.Contains(a.AssignmentID) || !ids.Contains(keep.AssignmentID) {
		t.Errorf("班级作业列表应只移除被删作业，实际: %v", ids)
	}
	if len(f.db.submissions) != 0 || len(f.db.comments) != 0 {
		t.Errorf("提交与评论应级联删除，实际: %d / %d", len(f.db.submissions), len(f.db.comments))
	}
	if len(f.store.removed) != 2 {
		t.Errorf("应删除作业附件与提交附件共 2 个，实际: %v", f.store.removed)
	}

	if err := f.svc.Delete(ctx, teacherCaller, a.AssignmentID); !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("重复删除：期望 ErrAssignmentNotFound，实际: %v", err)
	}
}
