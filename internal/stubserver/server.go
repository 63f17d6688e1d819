// Package stubserver is an in-memory stand-in for the document-ingestion
// service, implementing the same HTTP contract the client speaks: JWT
// login, multipart upload with canned OCR results, paginated search,
// record CRUD, CSV export, and statistics. It exists for integration
// tests and offline development; it runs no real OCR and keeps no
// durable state.
package stubserver

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docuscan/internal/model"
)

// Config for the stub service.
type Config struct {
	Username  string
	Password  string
	JWTKey    string
	JWTIssuer string
	AccessTTL time.Duration
}

// Server holds the in-memory record store and the gin engine.
type Server struct {
	cfg    Config
	engine *gin.Engine

	mu       sync.Mutex
	nextID   int64
	students map[int64]model.Student
	files    map[string][]byte
}

// New creates a stub server with the given config. Zero fields get
// development defaults.
func New(cfg Config) *Server {
	if cfg.Username == "" {
		cfg.Username = "admin"
	}
	if cfg.Password == "" {
		cfg.Password = "admin123"
	}
	if cfg.JWTKey == "" {
		cfg.JWTKey = "stub-signing-secret"
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "docuscan-stub"
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 30 * time.Minute
	}

	s := &Server{
		cfg:      cfg,
		nextID:   1,
		students: make(map[int64]model.Student),
		files:    make(map[string][]byte),
	}
	s.engine = s.routes()
	return s
}

// Handler exposes the engine for http.Server and httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/api/auth/login", s.handleLogin)

	authed := r.Group("/api", s.bearerAuth())
	authed.GET("/auth/me", s.handleMe)
	authed.POST("/upload", s.handleUpload)
	authed.GET("/students", s.handleSearch)
	authed.GET("/students/:id", s.handleGet)
	authed.PUT("/students/:id", s.handleUpdate)
	authed.DELETE("/students/:id", s.handleDelete)
	authed.GET("/export/excel", s.handleExport)
	authed.GET("/stats", s.handleStats)

	// File retrieval is a direct URL, outside the JSON path, but still
	// bearer-protected like the rest of the contract.
	authed.GET("/files/:student_id/:filename", s.handleFile)

	return r
}

// bearerAuth enforces HS256 bearer tokens. Error bodies use the
// service's "detail" field so clients surface the same reasons.
func (s *Server) bearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		parsedClaims, err := parseToken(tokenStr, s.cfg.JWTKey, s.cfg.JWTIssuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
			return
		}
		c.Set("username", parsedClaims.Username)
		c.Set("role", parsedClaims.Role)
		c.Next()
	}
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "username and password required"})
		return
	}
	if req.Username != s.cfg.Username || req.Password != s.cfg.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect username or password"})
		return
	}
	token, _, err := issueToken(req.Username, "admin", s.cfg.JWTIssuer, s.cfg.JWTKey, s.cfg.AccessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, model.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.cfg.AccessTTL / time.Second),
	})
}

func (s *Server) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, model.User{
		Username: c.GetString("username"),
		Role:     c.GetString("role"),
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "file field required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "read file failed"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "empty file"})
		return
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	now := time.Now().UTC().Format(time.RFC3339Nano)
	studentID := fmt.Sprintf("STU-%05d", id)
	extracted := fmt.Sprintf("STUDENT ID CARD\nID: %s\nSOURCE: %s", studentID, header.Filename)
	student := model.Student{
		ID:                id,
		StudentID:         studentID,
		FullName:          "Student " + strconv.FormatInt(id, 10),
		Department:        "Unassigned",
		DocumentType:      "id_card",
		ExtractedText:     extracted,
		OriginalImagePath: header.Filename,
		PhotoPath:         "photo-" + uuid.NewString() + ".jpg",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.students[id] = student
	s.files[studentID+"/"+header.Filename] = data
	s.mu.Unlock()

	c.JSON(http.StatusOK, model.UploadResponse{
		Success: true,
		Message: "Document processed successfully",
		Student: &student,
		OCRResult: &model.OCRResult{
			Success:        true,
			ExtractedText:  extracted,
			StudentData:    map[string]string{"student_id": studentID},
			PhotoExtracted: true,
		},
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	query := strings.ToLower(c.Query("query"))
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 50)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	s.mu.Lock()
	matched := make([]model.Student, 0, len(s.students))
	for _, student := range s.students {
		if query == "" || matches(student, query) {
			matched = append(matched, student)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, model.SearchResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Students: matched[start:end],
	})
}

func matches(student model.Student, query string) bool {
	for _, field := range []string{student.FullName, student.StudentID, student.Department, student.Program, student.Email} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (s *Server) handleGet(c *gin.Context) {
	student, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, student)
}

func (s *Server) handleUpdate(c *gin.Context) {
	var update model.StudentUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid id"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Student not found"})
		return
	}
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&student.StudentID, update.StudentID)
	apply(&student.FullName, update.FullName)
	apply(&student.Email, update.Email)
	apply(&student.Phone, update.Phone)
	apply(&student.Department, update.Department)
	apply(&student.Program, update.Program)
	apply(&student.YearOfStudy, update.YearOfStudy)
	student.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	s.students[id] = student
	c.JSON(http.StatusOK, student)
}

func (s *Server) handleDelete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid id"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[id]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Student not found"})
		return
	}
	delete(s.students, id)
	c.Status(http.StatusNoContent)
}

// handleExport emits matching records as CSV. Clients treat the export
// payload as opaque bytes, so the stub does not need a real xlsx writer.
func (s *Server) handleExport(c *gin.Context) {
	query := strings.ToLower(c.Query("query"))

	s.mu.Lock()
	matched := make([]model.Student, 0, len(s.students))
	for _, student := range s.students {
		if query == "" || matches(student, query) {
			matched = append(matched, student)
		}
	}
	s.mu.Unlock()
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	var b strings.Builder
	b.WriteString("id,student_id,full_name,email,phone,department,program,year_of_study\n")
	for _, st := range matched {
		fmt.Fprintf(&b, "%d,%s,%s,%s,%s,%s,%s,%s\n",
			st.ID, st.StudentID, st.FullName, st.Email, st.Phone, st.Department, st.Program, st.YearOfStudy)
	}

	c.Header("Content-Disposition", `attachment; filename="students_export.csv"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", []byte(b.String()))
}

func (s *Server) handleStats(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	weekAgo := time.Now().UTC().Add(-7 * 24 * time.Hour)
	recent := 0
	byDept := make(map[string]int)
	for _, student := range s.students {
		if created, err := time.Parse(time.RFC3339Nano, student.CreatedAt); err == nil && created.After(weekAgo) {
			recent++
		}
		if student.Department != "" {
			byDept[student.Department]++
		}
	}
	departments := make([]model.DepartmentCount, 0, len(byDept))
	for name, count := range byDept {
		departments = append(departments, model.DepartmentCount{Name: name, Count: count})
	}
	sort.Slice(departments, func(i, j int) bool { return departments[i].Name < departments[j].Name })

	c.JSON(http.StatusOK, model.Statistics{
		TotalStudents: len(s.students),
		RecentUploads: recent,
		Departments:   departments,
	})
}

func (s *Server) handleFile(c *gin.Context) {
	key := c.Param("student_id") + "/" + c.Param("filename")
	s.mu.Lock()
	data, ok := s.files[key]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not found"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

// lookup resolves the :id param to a student, writing the error
// response itself when the record is missing.
func (s *Server) lookup(c *gin.Context) (model.Student, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid id"})
		return model.Student{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Student not found"})
		return model.Student{}, false
	}
	return student, true
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
