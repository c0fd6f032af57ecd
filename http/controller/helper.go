package controller

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"github.com/tnqbao/gau-media-service/entity"
	"github.com/tnqbao/gau-media-service/http/controller/dto"
	"github.com/tnqbao/gau-media-service/utils"
)

// respondError maps service errors onto HTTP statuses.
func (ctrl *Controller) respondError(c *gin.Context, tag string, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, entity.ErrStorageExhausted):
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Object storage is full", tag)
		utils.JSON503(c, "Object storage is full")
	case errors.Is(err, entity.ErrAlreadyExists),
		errors.Is(err, entity.ErrInvalidSortField),
		errors.Is(err, entity.ErrInvalidTags):
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[%s] Rejected request: %v", tag, err)
		utils.JSON400(c, err.Error())
	case errors.Is(err, entity.ErrNotFound):
		utils.JSON404(c, "File not found")
	case errors.Is(err, entity.ErrReconcileInProgress):
		utils.JSON409(c, err.Error())
	default:
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Internal error: %v", tag, err)
		utils.JSON500(c, "Internal server error")
	}
}

func parseFileID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.JSON400(c, "Invalid file id format")
		return uuid.Nil, false
	}
	return id, true
}

// bindCreateRequest reads the metadata of a multipart upload, either from the
// JSON "data" field or from individual form fields.
func bindCreateRequest(c *gin.Context) (dto.CreateFileRequest, error) {
	var req dto.CreateFileRequest
	if data := strings.TrimSpace(c.PostForm("data")); data != "" {
		if err := json.Unmarshal([]byte(data), &req); err != nil {
			return req, err
		}
		return req, binding.Validator.ValidateStruct(&req)
	}
	err := c.ShouldBindWith(&req, binding.FormMultipart)
	return req, err
}
