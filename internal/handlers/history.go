package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/services"
)

type HistoryHandler struct {
	log            *logger.Logger
	historyService services.HistoryService
	bucketService  services.BucketService
	emailService   services.EmailService
}

// NewHistoryHandler takes optional bucket and email services; exports to an
// unconfigured destination answer 503.
func NewHistoryHandler(log *logger.Logger, historyService services.HistoryService, bucketService services.BucketService, emailService services.EmailService) *HistoryHandler {
	return &HistoryHandler{
		log:            log.With("handler", "HistoryHandler"),
		historyService: historyService,
		bucketService:  bucketService,
		emailService:   emailService,
	}
}

func (hh *HistoryHandler) limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return hh.historyService.DefaultExportLimit(), true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		badRequest(c, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}

func (hh *HistoryHandler) Recent(c *gin.Context) {
	limit, ok := hh.limitParam(c)
	if !ok {
		return
	}
	rows, err := hh.historyService.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": rows})
}

func (hh *HistoryHandler) Purge(c *gin.Context) {
	deleted, err := hh.historyService.PurgeAll(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (hh *HistoryHandler) Export(c *gin.Context) {
	limit, ok := hh.limitParam(c)
	if !ok {
		return
	}
	// buffered so a store failure can still produce a JSON error
	var buf bytes.Buffer
	if _, err := hh.historyService.ExportCSV(c.Request.Context(), &buf, limit); err != nil {
		respondError(c, err, nil)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", services.ExportFilename))
	c.Data(http.StatusOK, services.ExportContentType, buf.Bytes())
}

func (hh *HistoryHandler) Upload(c *gin.Context) {
	if hh.bucketService == nil {
		respondError(c, fmt.Errorf("%w: no export bucket configured", errs.ErrExportUnavailable), nil)
		return
	}
	limit, ok := hh.limitParam(c)
	if !ok {
		return
	}
	data, rows, err := hh.historyService.ExportBytes(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	key := services.ExportObjectKey(time.Now())
	if err := hh.bucketService.UploadFile(c.Request.Context(), key, services.ExportContentType, bytes.NewReader(data)); err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"object": key, "url": hh.bucketService.GetPublicURL(key), "rows": rows})
}

type emailExportRequest struct {
	To    string `json:"to" binding:"required,email"`
	Limit int    `json:"limit"`
}

func (hh *HistoryHandler) Email(c *gin.Context) {
	if hh.emailService == nil {
		respondError(c, fmt.Errorf("%w: email delivery not configured", errs.ErrExportUnavailable), nil)
		return
	}
	var req emailExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "a valid \"to\" address is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = hh.historyService.DefaultExportLimit()
	}
	data, rows, err := hh.historyService.ExportBytes(c.Request.Context(), req.Limit)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	if err := hh.emailService.SendExport(c.Request.Context(), req.To, services.ExportFilename, data, rows); err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sent_to": req.To, "rows": rows})
}
