package controllers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"backend/config"
	"backend/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SubmitMeal accepts a multipart form: one or more "images" files and an
// optional "audio" file. The pipeline itself enforces cardinality.
func SubmitMeal(c *gin.Context) {
	userID := c.GetUint("userID")

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}

	images, err := readUploads(form.File["images"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var audio *services.Upload
	if files := form.File["audio"]; len(files) > 0 {
		uploads, err := readUploads(files[:1])
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		audio = &uploads[0]
	}

	cfg := config.LoadPipelineConfig()
	svc := services.NewMealLogService(
		cfg,
		services.NewAssetIngestor(services.DefaultObjectStore, cfg.MaxUploadWorkers),
		services.NewWhisperService(),
		services.NewVisionService(),
		services.NewGormMealStore(config.DB),
	)

	result, err := svc.Submit(c.Request.Context(), userID, images, audio)
	if err != nil {
		c.JSON(pipelineStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, result)
}

func ListMealLogs(c *gin.Context) {
	userID := c.GetUint("userID")

	store := services.NewGormMealStore(config.DB)
	logs, err := store.ListByUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, logs)
}

func GetMealLog(c *gin.Context) {
	userID := c.GetUint("userID")
	logID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meal log id"})
		return
	}

	store := services.NewGormMealStore(config.DB)
	log, err := store.Get(userID, uint(logID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "meal log not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, log)
}

// pipelineStatus maps the pipeline failure taxonomy onto HTTP statuses.
// Upstream-provider failures read as 502, our own stores as 500.
func pipelineStatus(err error) int {
	var (
		invalid       *services.InvalidSubmissionError
		storage       *services.StorageError
		transcription *services.TranscriptionError
		inference     *services.InferenceError
		validation    *services.ValidationError
		persistence   *services.PersistenceError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &transcription), errors.As(err, &inference), errors.As(err, &validation):
		return http.StatusBadGateway
	case errors.As(err, &storage), errors.As(err, &persistence):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func readUploads(files []*multipart.FileHeader) ([]services.Upload, error) {
	uploads := make([]services.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, errors.New("failed to read uploaded file " + fh.Filename)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errors.New("failed to read uploaded file " + fh.Filename)
		}
		uploads = append(uploads, services.Upload{
			Filename: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return uploads, nil
}
