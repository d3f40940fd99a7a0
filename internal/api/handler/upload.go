package handler

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/timmy/tally/internal/api/middleware"
	"github.com/timmy/tally/internal/domain"
	"github.com/timmy/tally/internal/service"
	"github.com/timmy/tally/internal/tabular"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	// multipartOverhead is allowed on top of the file size limit for the
	// other form fields and part headers.
	multipartOverhead = 1 << 20
)

// UploadHandler handles bulk upload endpoints.
type UploadHandler struct {
	uploadService *service.UploadService
	stagingDir    string
	maxFileSize   int64
}

// NewUploadHandler creates a new upload handler.
// Parameters:
//   - uploadService: upload service instance.
//   - stagingDir: directory uploaded files are staged in until their job ends.
//   - maxFileSize: upload limit in bytes; 0 disables the body limit.
// Returns:
//   - *UploadHandler: initialized handler.
func NewUploadHandler(uploadService *service.UploadService, stagingDir string, maxFileSize int64) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		stagingDir:    stagingDir,
		maxFileSize:   maxFileSize,
	}
}

// Upload handles POST /api/v1/uploads.
// The file is staged, the job is created and processing starts in the
// background; the response only carries the job ID to poll.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.maxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize+multipartOverhead)
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid upload: a file is required in field 'file'",
		})
		return
	}

	opts, err := parseOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	req := service.CreateJobRequest{
		OwnerID:      middleware.GetActor(c),
		RecordType:   c.PostForm("record_type"),
		ElectionYear: c.PostForm("election_year"),
		FileName:     header.Filename,
		FileSize:     header.Size,
		Options:      opts,
	}

	// Reject bad input before anything touches the disk.
	if _, ok := tabular.FormatFromPath(header.Filename); !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: file must be .csv or .xlsx",
		})
		return
	}

	stagedPath := filepath.Join(h.stagingDir, uuid.New().String()+strings.ToLower(filepath.Ext(header.Filename)))
	if err := c.SaveUploadedFile(header, stagedPath); err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to stage upload")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store uploaded file",
		})
		return
	}

	job, err := h.uploadService.CreateJob(c.Request.Context(), req)
	if err != nil {
		_ = os.Remove(stagedPath)
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create upload job: " + err.Error(),
		})
		return
	}

	h.uploadService.StartJob(c.Request.Context(), job.ID, stagedPath)

	c.JSON(http.StatusAccepted, gin.H{
		"upload_id": job.ID,
		"status":    job.Status,
		"message":   "File uploaded, processing started",
	})
}

func parseOptions(c *gin.Context) (domain.JobOptions, error) {
	var opts domain.JobOptions
	var err error
	if opts.OverwriteExisting, err = formBool(c, "overwrite_existing"); err != nil {
		return opts, err
	}
	if opts.ValidateOnly, err = formBool(c, "validate_only"); err != nil {
		return opts, err
	}
	return opts, nil
}

func formBool(c *gin.Context, key string) (bool, error) {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New(key + " must be true or false")
	}
	return v, nil
}

// ListUploads handles GET /api/v1/uploads.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *UploadHandler) ListUploads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	uploads, total, err := h.uploadService.ListJobs(c.Request.Context(), middleware.GetActor(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list uploads: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uploads": uploads,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetStatus handles GET /api/v1/uploads/:id.
// Jobs of other actors answer 404, like unknown IDs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *UploadHandler) GetStatus(c *gin.Context) {
	status, err := h.uploadService.GetStatus(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetErrors handles GET /api/v1/uploads/:id/errors.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *UploadHandler) GetErrors(c *gin.Context) {
	report, err := h.uploadService.GetErrors(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Upload not found",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Failed to load upload: " + err.Error(),
	})
}

// DownloadTemplate handles GET /api/v1/templates/:record_type.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes the template file).
func (h *UploadHandler) DownloadTemplate(c *gin.Context) {
	rt, ok := domain.ParseRecordType(strings.ToLower(c.Param("record_type")))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "record_type must be constituency or center",
		})
		return
	}
	format, ok := tabular.ParseFormat(c.DefaultQuery("format", "csv"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "format must be csv or excel",
		})
		return
	}

	var buf bytes.Buffer
	if err := service.RenderTemplate(&buf, rt, format); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to render template: " + err.Error(),
		})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+service.TemplateFileName(rt, format)+`"`)
	c.Data(http.StatusOK, tabular.ContentType(format), buf.Bytes())
}
