package controller

import (
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-media-service/http/controller/dto"
	"github.com/tnqbao/gau-media-service/utils"
)

func (ctrl *Controller) GetFile(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseFileID(c)
	if !ok {
		return
	}

	file, err := ctrl.Service.FileService.Get(ctx, id)
	if err != nil {
		ctrl.respondError(c, "File", err)
		return
	}
	if file == nil {
		utils.JSON404(c, "File not found")
		return
	}

	utils.JSON200(c, dto.NewFileResponse(file))
}

func (ctrl *Controller) ListFiles(c *gin.Context) {
	ctx := c.Request.Context()

	files, err := ctrl.Service.FileService.List(ctx, c.Query("order_by"))
	if err != nil {
		ctrl.respondError(c, "File", err)
		return
	}

	utils.JSON200(c, dto.NewFileResponses(files))
}

func (ctrl *Controller) CreateFile(c *gin.Context) {
	ctx := c.Request.Context()
	ctrl.Infra.Logger.InfoWithContextf(ctx, "[File] Received CreateFile request")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[File] Missing file in form data: %v", err)
		utils.JSON400(c, "Failed to get file: "+err.Error())
		return
	}

	req, err := bindCreateRequest(c)
	if err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[File] Failed to bind CreateFile request: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}
	if req.Mimetype == "" {
		req.Mimetype = fileHeader.Header.Get("Content-Type")
	}
	if req.Mimetype == "" {
		req.Mimetype = "application/octet-stream"
	}

	fields, err := req.ToFields()
	if err != nil {
		utils.JSON400(c, "Invalid reference_uuid format")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		ctrl.respondError(c, "File", err)
		return
	}
	defer src.Close()

	file, err := ctrl.Service.FileService.Create(ctx, fields, src, fileHeader.Size)
	if err != nil {
		ctrl.respondError(c, "File", err)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[File] Created file %s (%d bytes) at '%s/%s'", file.ID, fileHeader.Size, file.Bucket, file.Path)
	utils.JSON201(c, dto.NewFileResponse(file))
}

func (ctrl *Controller) UpdateFile(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseFileID(c)
	if !ok {
		return
	}

	var req dto.CreateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[File] Failed to bind UpdateFile request: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}
	if req.Mimetype == "" {
		utils.JSON400(c, "mimetype is required")
		return
	}

	fields, err := req.ToFields()
	if err != nil {
		utils.JSON400(c, "Invalid reference_uuid format")
		return
	}

	file, err := ctrl.Service.FileService.Update(ctx, id, fields)
	if err != nil {
		ctrl.respondError(c, "File", err)
		return
	}
	if file == nil {
		utils.JSON404(c, "File not found")
		return
	}

	utils.JSON200(c, dto.NewFileResponse(file))
}

func (ctrl *Controller) DeleteFile(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseFileID(c)
	if !ok {
		return
	}

	file, err := ctrl.Service.FileService.Delete(ctx, id)
	if err != nil {
		ctrl.respondError(c, "File", err)
		return
	}
	if file == nil {
		utils.JSON404(c, "File not found")
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[File] Deleted file %s", file.ID)
	utils.JSON200(c, dto.NewFileResponse(file))
}

// DownloadFileContent streams the object in ranged chunks. Errors after the
// first chunk can only abort the response.
func (ctrl *Controller) DownloadFileContent(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseFileID(c)
	if !ok {
		return
	}

	var chunkSize int64
	if raw := c.Query("chunk_size"); raw != "" {
		size, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || size <= 0 {
			utils.JSON400(c, "chunk_size must be a positive integer")
			return
		}
		chunkSize = size
	}

	content, err := ctrl.Service.FileService.DownloadChunks(ctx, id, chunkSize)
	if err != nil {
		ctrl.respondError(c, "File", err)
		return
	}

	file := content.File
	started := false
	writeHeader := func() {
		c.Header("Content-Type", file.Mimetype)
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(file.Path)}))
		c.Header("Content-Length", strconv.FormatInt(content.Size, 10))
		c.Status(http.StatusOK)
		started = true
	}

	for chunk, err := range content.Chunks {
		if err != nil {
			if !started {
				ctrl.respondError(c, "File", err)
				return
			}
			ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[File] Stream of %s aborted", file.ID)
			c.Abort()
			return
		}
		if !started {
			writeHeader()
		}
		if _, err := c.Writer.Write(chunk); err != nil {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[File] Client went away while streaming %s: %v", file.ID, err)
			return
		}
		c.Writer.Flush()
	}
	if !started {
		writeHeader()
		c.Writer.WriteHeaderNow()
	}
}

func (ctrl *Controller) Reconcile(c *gin.Context) {
	ctx := c.Request.Context()
	bucket := c.Query("bucket")
	if bucket == "" {
		utils.JSON400(c, "bucket is required")
		return
	}

	removed, err := ctrl.Service.Reconciler.RunOnce(ctx, bucket)
	if err != nil {
		ctrl.respondError(c, "Reconcile", err)
		return
	}

	utils.JSON200(c, dto.ReconcileResponse{Bucket: bucket, Removed: removed})
}

func (ctrl *Controller) Health(c *gin.Context) {
	ctx := c.Request.Context()
	if ctrl.Storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "storage health check not configured"})
		return
	}

	health, err := ctrl.Storage.StorageHealth(ctx)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Health] Storage health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	if !health.Online {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "storage": health})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": health})
}
