// Package httpapi wires the services to gin routes. Responses use the
// {success, data, error, message} envelope throughout.
package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"attendance-register/internal/attendance"
	"attendance-register/internal/auth"
	"attendance-register/internal/classes"
	"attendance-register/internal/config"
	"attendance-register/internal/export"
	"attendance-register/internal/kvstore"
	"attendance-register/internal/metrics"
	"attendance-register/internal/model"
	"attendance-register/internal/photostore"
	"attendance-register/internal/queue"
	"attendance-register/internal/student"
)

// Handler owns the route implementations.
type Handler struct {
	cfg      config.App
	kv       kvstore.Store
	students *student.Service
	classes  *classes.Service
	att      *attendance.Service
	users    *auth.Users
	photos   *photostore.Client // nil when Cloudinary is not configured
	queue    queue.Queue
	log      *slog.Logger
}

// New builds a handler and registers custom binding rules.
func New(cfg config.App, kv kvstore.Store, students *student.Service, cls *classes.Service,
	att *attendance.Service, users *auth.Users, photos *photostore.Client, q queue.Queue, log *slog.Logger) *Handler {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("inmobile", func(fl validator.FieldLevel) bool {
			return student.ValidMobile(fl.Field().String())
		})
	}
	return &Handler{
		cfg: cfg, kv: kv, students: students, classes: cls, att: att,
		users: users, photos: photos, queue: q, log: log,
	}
}

// Register attaches all routes. Data routes sit behind bearer auth;
// health, metrics, and the auth bootstrap endpoints stay open.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)
	r.POST("/init-admin", h.InitAdmin)
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)

	g := r.Group("/", auth.AdminAuth(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))
	g.GET("/classes", h.ListClasses)
	g.POST("/classes", h.ReplaceClasses)
	g.GET("/schools", h.ListSchools)
	g.GET("/students", h.ListStudents)
	g.GET("/students/:id", h.GetStudent)
	g.POST("/students", h.CreateStudent)
	g.PUT("/students/:id", h.UpdateStudent)
	g.DELETE("/students/:id", h.DeleteStudent)
	g.GET("/attendance", h.Roster)
	g.POST("/attendance", h.Mark)
	g.POST("/attendance/bulk", h.BulkMark)
	g.GET("/reports/attendance", h.AttendanceReport)
	g.GET("/reports/classes", h.ClassReport)
	g.POST("/upload-photo", h.UploadPhoto)
	g.GET("/dashboard/stats", h.DashboardStats)
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	healthy := h.kv.Healthy(c.Request.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "store": healthy})
}

// ---------- Auth ----------

func (h *Handler) InitAdmin(c *gin.Context) {
	user, existed, err := h.users.InitDefaultAdmin(c.Request.Context())
	if err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to create admin user: %w", err))
		return
	}
	msg := "Admin user created successfully"
	if existed {
		msg = "Admin user already exists"
	}
	respondMsg(c, http.StatusOK, gin.H{"email": user.Email, "name": user.Name}, msg)
}

type signupReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, errors.New("email and password are required"))
		return
	}
	user, err := h.users.Create(c.Request.Context(), req.Email, req.Password, req.Name)
	if errors.Is(err, auth.ErrExists) {
		respondErr(c, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("signup failed: %w", err))
		return
	}
	respondMsg(c, http.StatusOK, gin.H{"email": user.Email, "name": user.Name}, "User created successfully")
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, errors.New("email and password are required"))
		return
	}
	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrBadCredentials) {
		respondErr(c, http.StatusUnauthorized, err)
		return
	}
	if err != nil {
		respondErr(c, http.StatusInternalServerError, err)
		return
	}
	tokens, err := auth.Issue(user.Email, "admin", h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, errors.New("token issue failed"))
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
		"expiresAt":    tokens.AccessExp.Unix(),
	})
}

// ---------- Classes ----------

func (h *Handler) ListClasses(c *gin.Context) {
	list, err := h.classes.List(c.Request.Context())
	if err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to fetch classes: %w", err))
		return
	}
	respondOK(c, http.StatusOK, list)
}

type replaceClassesReq struct {
	Classes []model.Class `json:"classes" binding:"required"`
}

func (h *Handler) ReplaceClasses(c *gin.Context) {
	var req replaceClassesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, errors.New("classes array is required"))
		return
	}
	if err := h.classes.Replace(c.Request.Context(), req.Classes); err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to update classes: %w", err))
		return
	}
	respondMsg(c, http.StatusOK, req.Classes, "Classes updated successfully")
}

// ---------- Schools ----------

func (h *Handler) ListSchools(c *gin.Context) {
	schools, err := h.students.Schools(c.Request.Context())
	if err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to fetch schools: %w", err))
		return
	}
	respondOK(c, http.StatusOK, schools)
}

// ---------- Students ----------

func (h *Handler) ListStudents(c *gin.Context) {
	list, err := h.students.List(c.Request.Context())
	if err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to fetch students: %w", err))
		return
	}
	respondOK(c, http.StatusOK, list)
}

func (h *Handler) GetStudent(c *gin.Context) {
	st, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, student.ErrNotFound) {
		respondErr(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to fetch student: %w", err))
		return
	}
	respondOK(c, http.StatusOK, st)
}

type createStudentReq struct {
	FirstName    string `json:"firstName" binding:"required"`
	FatherName   string `json:"fatherName"`
	Surname      string `json:"surname" binding:"required"`
	DateOfBirth  string `json:"dateOfBirth" binding:"required,datetime=2006-01-02"`
	MobileNumber string `json:"mobileNumber" binding:"required,inmobile"`
	Standard     int    `json:"standard" binding:"required,gt=0"`
	Address      string `json:"address"`
	School       string `json:"school"`
	StudentPhoto string `json:"studentPhoto"`
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var req createStudentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, fmt.Errorf("missing or invalid required fields: %w", err))
		return
	}
	st, err := h.students.Create(c.Request.Context(), student.CreateInput{
		FirstName:    req.FirstName,
		FatherName:   req.FatherName,
		Surname:      req.Surname,
		DateOfBirth:  req.DateOfBirth,
		MobileNumber: req.MobileNumber,
		Standard:     req.Standard,
		Address:      req.Address,
		School:       req.School,
		StudentPhoto: req.StudentPhoto,
	})
	if err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to create student: %w", err))
		return
	}
	respondMsg(c, http.StatusOK, st, "Student created successfully")
}

type updateStudentReq struct {
	FirstName    *string `json:"firstName"`
	FatherName   *string `json:"fatherName"`
	Surname      *string `json:"surname"`
	DateOfBirth  *string `json:"dateOfBirth" binding:"omitempty,datetime=2006-01-02"`
	MobileNumber *string `json:"mobileNumber" binding:"omitempty,inmobile"`
	Standard     *int    `json:"standard" binding:"omitempty,gt=0"`
	Address      *string `json:"address"`
	School       *string `json:"school"`
	StudentPhoto *string `json:"studentPhoto"`
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	var req updateStudentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, fmt.Errorf("invalid update payload: %w", err))
		return
	}
	st, err := h.students.Update(c.Request.Context(), c.Param("id"), student.UpdateInput{
		FirstName:    req.FirstName,
		FatherName:   req.FatherName,
		Surname:      req.Surname,
		DateOfBirth:  req.DateOfBirth,
		MobileNumber: req.MobileNumber,
		Standard:     req.Standard,
		Address:      req.Address,
		School:       req.School,
		StudentPhoto: req.StudentPhoto,
	})
	if errors.Is(err, student.ErrNotFound) {
		respondErr(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to update student: %w", err))
		return
	}
	respondMsg(c, http.StatusOK, st, "Student updated successfully")
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	err := h.students.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, student.ErrNotFound) {
		respondErr(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to delete student: %w", err))
		return
	}
	respondMsg(c, http.StatusOK, nil, "Student and related attendance records deleted successfully")
}

// ---------- Attendance ----------

func (h *Handler) Roster(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		respondErr(c, http.StatusBadRequest, errors.New("date parameter is required"))
		return
	}
	standard, err := optionalInt(c.Query("standard"))
	if err != nil {
		respondErr(c, http.StatusBadRequest, errors.New("standard must be an integer"))
		return
	}
	entries, err := h.att.Roster(c.Request.Context(), date, standard)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to fetch attendance: %w", err))
		return
	}
	respondOK(c, http.StatusOK, entries)
}

func (h *Handler) Mark(c *gin.Context) {
	var req attendance.MarkInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, errors.New("missing required fields: studentId, date, status"))
		return
	}
	rec, err := h.att.Mark(c.Request.Context(), req)
	if errors.Is(err, attendance.ErrInvalidMark) {
		respondErr(c, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to mark attendance: %w", err))
		return
	}
	h.publishMark(c, rec)
	metrics.MarksWritten.WithLabelValues(string(rec.Status)).Inc()
	respondMsg(c, http.StatusOK, rec, "Attendance marked successfully")
}

type bulkMarkReq struct {
	Records []attendance.MarkInput `json:"records" binding:"required"`
}

func (h *Handler) BulkMark(c *gin.Context) {
	var req bulkMarkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, errors.New("records array is required"))
		return
	}
	written, skipped, err := h.att.BulkMark(c.Request.Context(), req.Records)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to bulk mark attendance: %w", err))
		return
	}
	for _, rec := range written {
		h.publishMark(c, rec)
		metrics.MarksWritten.WithLabelValues(string(rec.Status)).Inc()
	}
	msg := fmt.Sprintf("%d attendance records marked successfully", len(written))
	if len(skipped) > 0 {
		msg = fmt.Sprintf("%d attendance records marked, %d skipped", len(written), len(skipped))
	}
	respondMsg(c, http.StatusOK, written, msg)
}

// publishMark announces a written record on the queue; failures are
// logged and never affect the response.
func (h *Handler) publishMark(c *gin.Context, rec model.AttendanceRecord) {
	if h.queue == nil {
		return
	}
	evt := queue.MarkEvent{StudentID: rec.StudentID, Date: rec.Date, Status: rec.Status}
	if err := h.queue.Publish(c.Request.Context(), evt); err != nil {
		h.log.Warn("queue publish failed", slog.String("error", err.Error()))
	}
}

// ---------- Reports ----------

func (h *Handler) AttendanceReport(c *gin.Context) {
	rows, ok := h.reportRows(c)
	if !ok {
		return
	}
	if c.Query("format") == "csv" {
		name := fmt.Sprintf("student-attendance-report-%s-to-%s.csv", c.Query("startDate"), c.Query("endDate"))
		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		c.Header("Content-Type", "text/csv")
		if err := export.StudentReportCSV(c.Writer, rows); err != nil {
			h.log.Error("csv export failed", slog.String("error", err.Error()))
		}
		return
	}
	respondOK(c, http.StatusOK, rows)
}

func (h *Handler) ClassReport(c *gin.Context) {
	rows, ok := h.reportRows(c)
	if !ok {
		return
	}
	rollups := attendance.Rollup(rows)
	if c.Query("format") == "csv" {
		name := fmt.Sprintf("class-attendance-report-%s-to-%s.csv", c.Query("startDate"), c.Query("endDate"))
		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		c.Header("Content-Type", "text/csv")
		if err := export.ClassReportCSV(c.Writer, rollups); err != nil {
			h.log.Error("csv export failed", slog.String("error", err.Error()))
		}
		return
	}
	respondOK(c, http.StatusOK, rollups)
}

// reportRows parses the shared report query parameters and runs the
// range report, writing the error response itself on failure.
func (h *Handler) reportRows(c *gin.Context) ([]model.ReportRow, bool) {
	startDate := c.Query("startDate")
	endDate := c.Query("endDate")
	if startDate == "" || endDate == "" {
		respondErr(c, http.StatusBadRequest, errors.New("startDate and endDate parameters are required"))
		return nil, false
	}
	standard, err := optionalInt(c.Query("standard"))
	if err != nil {
		respondErr(c, http.StatusBadRequest, errors.New("standard must be an integer"))
		return nil, false
	}
	rows, err := h.att.Report(c.Request.Context(), startDate, endDate, standard, c.Query("school"))
	if errors.Is(err, attendance.ErrInvalidRange) {
		respondErr(c, http.StatusBadRequest, err)
		return nil, false
	}
	if err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to generate report: %w", err))
		return nil, false
	}
	return rows, true
}

// ---------- Photos ----------

type uploadPhotoReq struct {
	FileName  string `json:"fileName" binding:"required"`
	FileData  string `json:"fileData" binding:"required"`
	StudentID string `json:"studentId"`
}

func (h *Handler) UploadPhoto(c *gin.Context) {
	if h.photos == nil {
		respondErr(c, http.StatusServiceUnavailable, errors.New("photo storage not configured"))
		return
	}
	var req uploadPhotoReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, errors.New("fileName and fileData are required"))
		return
	}

	name := photostore.UniqueFileName(req.FileName, req.StudentID)
	result, err := h.photos.UploadBase64(req.FileData, name)
	if err != nil {
		metrics.PhotoUploads.WithLabelValues("error").Inc()
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to upload photo: %w", err))
		return
	}
	metrics.PhotoUploads.WithLabelValues("ok").Inc()
	respondMsg(c, http.StatusOK, gin.H{"fileName": name, "url": result.SecureURL}, "Photo uploaded successfully")
}

// ---------- Dashboard ----------

func (h *Handler) DashboardStats(c *gin.Context) {
	stats, err := h.att.Dashboard(c.Request.Context())
	if err != nil {
		respondErr(c, http.StatusInternalServerError, fmt.Errorf("failed to fetch dashboard stats: %w", err))
		return
	}
	respondOK(c, http.StatusOK, stats)
}

func optionalInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
