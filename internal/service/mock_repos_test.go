package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"classhub/internal/model"
	"classhub/internal/repository"
	pkgerrors "classhub/pkg/errors"
	"classhub/pkg/mailer"
	"classhub/pkg/storage"
)

// ── 内存数据集 ──
// 多个 mock 共享同一份数据，便于跨仓储查询（如班级成员 → 用户）

type memDB struct {
	mu          sync.Mutex
	seq         int
	users       map[string]*model.User
	classrooms  map[string]*model.Classroom
	members     map[string]map[string]bool // classroom_id → student_id
	assignments map[string]*model.Assignment
	submissions map[string]*model.Submission // key: assignment_id/student_id
	comments    []model.Comment
}

func newMemDB() *memDB {
	return &memDB{
		users:       make(map[string]*model.User),
		classrooms:  make(map[string]*model.Classroom),
		members:     make(map[string]map[string]bool),
		assignments: make(map[string]*model.Assignment),
		submissions: make(map[string]*model.Submission),
	}
}

var errNotAffected = pkgerrors.ErrNotAffected

var mockEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// nextID 生成递增 ID，并返回对应的递增时间戳
func (d *memDB) nextID(prefix string) (string, time.Time) {
	d.seq++
	return fmt.Sprintf("%s-%d", prefix, d.seq), mockEpoch.Add(time.Duration(d.seq) * time.Minute)
}

func submissionKey(assignmentID, studentID string) string {
	return assignmentID + "/" + studentID
}

func newMockRepository(db *memDB) *repository.Repository {
	return &repository.Repository{
		User:       &mockUserRepo{db: db},
		Classroom:  &mockClassroomRepo{db: db},
		Assignment: &mockAssignmentRepo{db: db},
		Submission: &mockSubmissionRepo{db: db},
		Comment:    &mockCommentRepo{db: db},
	}
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	db *memDB
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		user.UserID, user.CreatedAt = m.db.nextID("user")
		user.UpdatedAt = user.CreatedAt
	}
	cp := *user
	m.db.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if u, ok := m.db.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.User
	for _, id := range ids {
		if u, ok := m.db.users[id]; ok {
			result = append(result, *u)
		}
	}
	return result, nil
}

// ── Mock ClassroomRepository ──

type mockClassroomRepo struct {
	db *memDB
}

func (m *mockClassroomRepo) Create(_ context.Context, classroom *model.Classroom) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, c := range m.db.classrooms {
		if c.Code == classroom.Code {
			return gorm.ErrDuplicatedKey
		}
	}
	if classroom.ClassroomID == "" {
		classroom.ClassroomID, classroom.CreatedAt = m.db.nextID("class")
		classroom.UpdatedAt = classroom.CreatedAt
	}
	cp := *classroom
	cp.AssignmentIDs = append(model.StringArray{}, classroom.AssignmentIDs...)
	m.db.classrooms[classroom.ClassroomID] = &cp
	return nil
}

func (m *mockClassroomRepo) copyOf(c *model.Classroom) *model.Classroom {
	cp := *c
	cp.AssignmentIDs = append(model.StringArray{}, c.AssignmentIDs...)
	if t, ok := m.db.users[c.TeacherID]; ok {
		tc := *t
		cp.Teacher = &tc
	}
	return &cp
}

func (m *mockClassroomRepo) GetByID(_ context.Context, id string) (*model.Classroom, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if c, ok := m.db.classrooms[id]; ok {
		return m.copyOf(c), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClassroomRepo) GetByCode(_ context.Context, code string) (*model.Classroom, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, c := range m.db.classrooms {
		if c.Code == code {
			return m.copyOf(c), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClassroomRepo) ListByTeacher(_ context.Context, teacherID string) ([]model.Classroom, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.Classroom
	for _, c := range m.db.classrooms {
		if c.TeacherID == teacherID {
			result = append(result, *m.copyOf(c))
		}
	}
	return result, nil
}

func (m *mockClassroomRepo) ListByStudent(_ context.Context, studentID string) ([]model.Classroom, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.Classroom
	for id, set := range m.db.members {
		if set[studentID] {
			if c, ok := m.db.classrooms[id]; ok {
				result = append(result, *m.copyOf(c))
			}
		}
	}
	return result, nil
}

func (m *mockClassroomRepo) AddStudent(_ context.Context, classroomID, studentID string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	set, ok := m.db.members[classroomID]
	if !ok {
		set = make(map[string]bool)
		m.db.members[classroomID] = set
	}
	if set[studentID] {
		return false, nil
	}
	set[studentID] = true
	return true, nil
}

func (m *mockClassroomRepo) IsStudent(_ context.Context, classroomID, studentID string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.db.members[classroomID][studentID], nil
}

func (m *mockClassroomRepo) ListStudents(_ context.Context, classroomID string) ([]model.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.User
	for id := range m.db.members[classroomID] {
		if u, ok := m.db.users[id]; ok {
			result = append(result, *u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockClassroomRepo) AttachAssignment(_ context.Context, classroomID, assignmentID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.classrooms[classroomID]
	if !ok {
		return errNotAffected
	}
	c.AssignmentIDs = append(c.AssignmentIDs, assignmentID)
	return nil
}

func (m *mockClassroomRepo) DetachAssignment(_ context.Context, classroomID, assignmentID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.classrooms[classroomID]
	if !ok {
		return nil
	}
	kept := model.StringArray{}
	for _, id := range c.AssignmentIDs {
		if id != assignmentID {
			kept = append(kept, id)
		}
	}
	c.AssignmentIDs = kept
	return nil
}

// ── Mock AssignmentRepository ──

type mockAssignmentRepo struct {
	db *memDB
}

func (m *mockAssignmentRepo) copyOf(a *model.Assignment) *model.Assignment {
	cp := *a
	cp.Attachments = append(datatypes.JSONSlice[model.Attachment]{}, a.Attachments...)
	if a.DueDate != nil {
		due := *a.DueDate
		cp.DueDate = &due
	}
	if t, ok := m.db.users[a.TeacherID]; ok {
		tc := *t
		cp.Teacher = &tc
	}
	return &cp
}

func (m *mockAssignmentRepo) Create(_ context.Context, assignment *model.Assignment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	assignment.AssignmentID, assignment.CreatedAt = m.db.nextID("asg")
	assignment.UpdatedAt = assignment.CreatedAt
	m.db.assignments[assignment.AssignmentID] = m.copyOf(assignment)
	return nil
}

func (m *mockAssignmentRepo) GetByID(_ context.Context, id string) (*model.Assignment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if a, ok := m.db.assignments[id]; ok {
		return m.copyOf(a), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) ListByClassroom(_ context.Context, classroomID string, publishedOnly bool) ([]model.Assignment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.Assignment
	for _, a := range m.db.assignments {
		if a.ClassroomID != classroomID || (publishedOnly && !a.IsPublished) {
			continue
		}
		result = append(result, *m.copyOf(a))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockAssignmentRepo) Update(_ context.Context, id string, fields map[string]interface{}, appendAttachments []model.Attachment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a, ok := m.db.assignments[id]
	if !ok {
		return errNotAffected
	}
	for k, v := range fields {
		switch k {
		case "title":
			a.Title = v.(string)
		case "description":
			a.Description = v.(string)
		case "due_date":
			if t, ok := v.(time.Time); ok {
				a.DueDate = &t
			} else {
				a.DueDate = nil
			}
		case "points":
			a.Points = v.(int)
		case "collect_submissions":
			a.CollectSubmissions = v.(bool)
		case "is_published":
			a.IsPublished = v.(bool)
		case "updated_at":
			a.UpdatedAt = v.(time.Time)
		}
	}
	a.Attachments = append(a.Attachments, appendAttachments...)
	return nil
}

func (m *mockAssignmentRepo) Delete(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.assignments[id]; !ok {
		return errNotAffected
	}
	delete(m.db.assignments, id)
	// 模拟外键级联
	for key, sub := range m.db.submissions {
		if sub.AssignmentID == id {
			delete(m.db.submissions, key)
		}
	}
	kept := m.db.comments[:0]
	for _, c := range m.db.comments {
		if c.AssignmentID != id {
			kept = append(kept, c)
		}
	}
	m.db.comments = kept
	return nil
}

func (m *mockAssignmentRepo) ListDueBetween(_ context.Context, from, to time.Time) ([]model.Assignment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.Assignment
	for _, a := range m.db.assignments {
		if !a.IsPublished || !a.CollectSubmissions || a.DueDate == nil {
			continue
		}
		if !a.DueDate.Before(from) && a.DueDate.Before(to) {
			result = append(result, *m.copyOf(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DueDate.Before(*result[j].DueDate) })
	return result, nil
}

// ── Mock SubmissionRepository ──

type mockSubmissionRepo struct {
	db *memDB
}

func (m *mockSubmissionRepo) copyOf(s *model.Submission) *model.Submission {
	cp := *s
	cp.Attachments = append(datatypes.JSONSlice[model.Attachment]{}, s.Attachments...)
	if u, ok := m.db.users[s.StudentID]; ok {
		uc := *u
		cp.Student = &uc
	}
	return &cp
}

func (m *mockSubmissionRepo) CreateIfAbsent(_ context.Context, submission *model.Submission) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	key := submissionKey(submission.AssignmentID, submission.StudentID)
	if _, ok := m.db.submissions[key]; ok {
		return false, nil
	}
	submission.SubmissionID, _ = m.db.nextID("sub")
	m.db.submissions[key] = m.copyOf(submission)
	return true, nil
}

func (m *mockSubmissionRepo) GetByAssignmentAndStudent(_ context.Context, assignmentID, studentID string) (*model.Submission, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if s, ok := m.db.submissions[submissionKey(assignmentID, studentID)]; ok {
		return m.copyOf(s), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) ListByAssignment(_ context.Context, assignmentID string) ([]model.Submission, error) {
	return m.ListByAssignments(context.Background(), []string{assignmentID})
}

func (m *mockSubmissionRepo) ListByAssignments(_ context.Context, assignmentIDs []string) ([]model.Submission, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	want := make(map[string]bool, len(assignmentIDs))
	for _, id := range assignmentIDs {
		want[id] = true
	}
	var result []model.Submission
	for _, s := range m.db.submissions {
		if want[s.AssignmentID] {
			result = append(result, *m.copyOf(s))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubmittedAt.Before(result[j].SubmittedAt) })
	return result, nil
}

func (m *mockSubmissionRepo) ListByStudent(_ context.Context, studentID string, assignmentIDs []string) ([]model.Submission, error) {
	all, _ := m.ListByAssignments(context.Background(), assignmentIDs)
	var result []model.Submission
	for _, s := range all {
		if s.StudentID == studentID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *mockSubmissionRepo) UpdateGrade(_ context.Context, assignmentID, studentID string, grade *float64, feedback *string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.submissions[submissionKey(assignmentID, studentID)]
	if !ok {
		return errNotAffected
	}
	s.Grade = grade
	s.Feedback = feedback
	s.IsGraded = true
	return nil
}

func (m *mockSubmissionRepo) Delete(_ context.Context, assignmentID, studentID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	key := submissionKey(assignmentID, studentID)
	if _, ok := m.db.submissions[key]; !ok {
		return errNotAffected
	}
	delete(m.db.submissions, key)
	return nil
}

// ── Mock CommentRepository ──

type mockCommentRepo struct {
	db *memDB
}

func (m *mockCommentRepo) Create(_ context.Context, comment *model.Comment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	comment.CommentID, _ = m.db.nextID("cmt")
	m.db.comments = append(m.db.comments, *comment)
	return nil
}

func (m *mockCommentRepo) ListByAssignment(_ context.Context, assignmentID string) ([]model.Comment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	result := []model.Comment{}
	for _, c := range m.db.comments {
		if c.AssignmentID == assignmentID {
			if u, ok := m.db.users[c.AuthorID]; ok {
				uc := *u
				c.Author = &uc
			}
			result = append(result, c)
		}
	}
	return result, nil
}

// ── Mock 外部协作方 ──

// mockStore 内存附件存储；failNames 中的文件上传失败
type mockStore struct {
	mu        sync.Mutex
	seq       int
	saved     map[string]string // key → filename
	removed   []string
	failNames map[string]bool
}

func newMockStore() *mockStore {
	return &mockStore{saved: make(map[string]string), failNames: make(map[string]bool)}
}

func (m *mockStore) Save(_ context.Context, folder string, fh *multipart.FileHeader) (*storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNames[fh.Filename] {
		return nil, errors.New("upload refused")
	}
	m.seq++
	key := fmt.Sprintf("%s/%d-%s", folder, m.seq, fh.Filename)
	m.saved[key] = fh.Filename
	return &storage.Object{
		Key:         key,
		URL:         "/uploads/" + key,
		Filename:    fh.Filename,
		ContentType: "application/pdf",
		Size:        fh.Size,
		Driver:      "mock",
	}, nil
}

func (m *mockStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, key)
	delete(m.saved, key)
	return nil
}

func (m *mockStore) stored() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func fileHeaders(names ...string) []*multipart.FileHeader {
	files := make([]*multipart.FileHeader, 0, len(names))
	for _, n := range names {
		files = append(files, &multipart.FileHeader{Filename: n, Size: 1024})
	}
	return files
}

type postedNotice struct {
	assignmentID string
	recipients   []string
}

type mockNotifier struct {
	mu     sync.Mutex
	posted []postedNotice
}

func (m *mockNotifier) AssignmentPosted(_ context.Context, _ *model.Classroom, assignment *model.Assignment, recipients []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posted = append(m.posted, postedNotice{assignmentID: assignment.AssignmentID, recipients: recipients})
}

type mockMailer struct {
	mu   sync.Mutex
	sent []*mailer.Message
	err  error
}

func (m *mockMailer) Send(_ context.Context, msg *mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// mockMarkers 内存版去重标记 / Token 黑名单
type mockMarkers struct {
	mu   sync.Mutex
	keys map[string]time.Duration
}

func newMockMarkers() *mockMarkers {
	return &mockMarkers{keys: make(map[string]time.Duration)}
}

func (m *mockMarkers) MarkOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = ttl
	return true, nil
}

func (m *mockMarkers) Unmark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (m *mockMarkers) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	_, err := m.MarkOnce(ctx, "blacklist:"+jti, ttl)
	return err
}

func (m *mockMarkers) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys["blacklist:"+jti]
	return ok, nil
}

// ── 数据构造 ──

func seedUser(db *memDB, id, name, role string) *model.User {
	u := &model.User{UserID: id, Name: name, Email: id + "@school.test", Role: role}
	db.users[id] = u
	return u
}

func seedClassroom(db *memDB, id, teacherID string, studentIDs ...string) *model.Classroom {
	c := &model.Classroom{
		ClassroomID:   id,
		Name:          "Class " + id,
		Code:          "CODE" + strings.ToUpper(id),
		TeacherID:     teacherID,
		AssignmentIDs: model.StringArray{},
	}
	db.classrooms[id] = c
	set := make(map[string]bool)
	for _, s := range studentIDs {
		set[s] = true
	}
	db.members[id] = set
	return c
}
