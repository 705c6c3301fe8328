package controller

import (
	"errors"
	"io/fs"
	"net/http"

	"lm-go/internal/config"
	"lm-go/internal/service"
	"lm-go/internal/service/lm"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LMController handles language model HTTP endpoints
type LMController struct {
	lmService *service.LMService
	config    *config.Config
	logger    *zap.Logger
}

// NewLMController creates a new language model controller
func NewLMController(lmService *service.LMService, cfg *config.Config, logger *zap.Logger) *LMController {
	return &LMController{
		lmService: lmService,
		config:    cfg,
		logger:    logger,
	}
}

// TrainRequest is the request body for training a model. Exactly one of
// Corpus, Path and Text selects the training data.
type TrainRequest struct {
	Name     string   `json:"name"`
	Corpus   string   `json:"corpus"`   // configured corpus name
	Path     string   `json:"path"`     // file or directory on the server
	Text     string   `json:"text"`     // inline document
	Language string   `json:"language"` // detected from extensions when empty
	Kind     string   `json:"kind"`
	N        int      `json:"n"`
	Gamma    *float64 `json:"gamma"`
	Beta     *float64 `json:"beta"`
	AddOne   *bool    `json:"addone"`
	Override bool     `json:"override"`
}

// ScoreRequest is the request body for scoring a text
type ScoreRequest struct {
	Text     string `json:"text" binding:"required"`
	Language string `json:"language"`
}

// ProbRequest is the request body for a conditional probability query
type ProbRequest struct {
	Token   string   `json:"token" binding:"required"`
	Context []string `json:"context"`
}

// EvaluateRequest is the request body for evaluating a model on a test corpus
type EvaluateRequest struct {
	Path     string `json:"path" binding:"required"`
	Language string `json:"language"`
}

// GenerateRequest is the request body for sampling sentences
type GenerateRequest struct {
	Count int   `json:"count"`
	Seed  int64 `json:"seed"`
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidArgument), errors.Is(err, fs.ErrNotExist):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (lc *LMController) respondError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		lc.logger.Error(message, zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// ListModels handles GET /api/v1/models
func (lc *LMController) ListModels(c *gin.Context) {
	models, err := lc.lmService.ListModels()
	if err != nil {
		lc.respondError(c, "Failed to list models", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

// GetModel handles GET /api/v1/models/:name
func (lc *LMController) GetModel(c *gin.Context) {
	info, err := lc.lmService.GetModel(c.Param("name"))
	if err != nil {
		lc.respondError(c, "Failed to get model", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// DeleteModel handles DELETE /api/v1/models/:name
func (lc *LMController) DeleteModel(c *gin.Context) {
	name := c.Param("name")
	if err := lc.lmService.DeleteModel(name); err != nil {
		lc.respondError(c, "Failed to delete model", err)
		return
	}
	lc.logger.Info("Deleted language model", zap.String("name", name))
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "name": name})
}

// TrainModel handles POST /api/v1/models/train
func (lc *LMController) TrainModel(c *gin.Context) {
	var req TrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	sources := 0
	for _, s := range []string{req.Corpus, req.Path, req.Text} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Exactly one of corpus, path and text is required"})
		return
	}

	lc.logger.Info("Training language model",
		zap.String("name", req.Name),
		zap.String("corpus", req.Corpus),
		zap.String("path", req.Path),
		zap.String("kind", req.Kind),
		zap.Int("n", req.N))

	ctx := c.Request.Context()
	var info *service.ModelInfo
	var err error
	if req.Corpus != "" {
		info, err = lc.trainConfiguredCorpus(c, req)
	} else {
		var opts lm.Options
		opts, err = lc.requestOptions(req)
		if err == nil {
			if req.Path != "" {
				info, err = lc.lmService.TrainPath(ctx, req.Name, req.Path, req.Language, opts)
			} else {
				info, err = lc.lmService.TrainText(ctx, req.Name, req.Text, req.Language, opts)
			}
		}
	}
	if err != nil {
		lc.respondError(c, "Failed to train model", err)
		return
	}

	c.JSON(http.StatusOK, info)
}

func (lc *LMController) trainConfiguredCorpus(c *gin.Context, req TrainRequest) (*service.ModelInfo, error) {
	if lc.config == nil {
		return nil, errors.Join(service.ErrInvalidArgument, errors.New("no corpora are configured"))
	}
	corpus, err := lc.config.GetCorpus(req.Corpus)
	if err != nil {
		return nil, errors.Join(service.ErrInvalidArgument, err)
	}
	opts, err := service.OptionsFromConfig(lc.config.ModelOptions(corpus))
	if err != nil {
		return nil, errors.Join(service.ErrInvalidArgument, err)
	}
	return lc.lmService.TrainCorpus(c.Request.Context(), corpus, opts, req.Override)
}

// requestOptions converts request fields to model options; unset fields fall
// back to the service defaults
func (lc *LMController) requestOptions(req TrainRequest) (lm.Options, error) {
	opts := lm.Options{N: req.N, Gamma: req.Gamma, Beta: req.Beta, AddOne: req.AddOne}
	if req.Kind != "" {
		kind, err := lm.ParseKind(req.Kind)
		if err != nil {
			return lm.Options{}, errors.Join(service.ErrInvalidArgument, err)
		}
		opts.Kind = kind
	}
	return opts, nil
}

// ScoreText handles POST /api/v1/models/:name/score
func (lc *LMController) ScoreText(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := lc.lmService.Score(c.Request.Context(), c.Param("name"), req.Text, req.Language)
	if err != nil {
		lc.respondError(c, "Failed to score text", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CondProb handles POST /api/v1/models/:name/prob
func (lc *LMController) CondProb(c *gin.Context) {
	var req ProbRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Context == nil {
		req.Context = []string{}
	}

	p, err := lc.lmService.CondProb(c.Param("name"), req.Token, req.Context)
	if err != nil {
		lc.respondError(c, "Failed to compute probability", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":       req.Token,
		"context":     req.Context,
		"probability": lm.Float(p),
	})
}

// EvaluateModel handles POST /api/v1/models/:name/evaluate
func (lc *LMController) EvaluateModel(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	report, err := lc.lmService.Evaluate(c.Request.Context(), c.Param("name"), req.Path, req.Language)
	if err != nil {
		lc.respondError(c, "Failed to evaluate model", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GenerateSentences handles POST /api/v1/models/:name/generate
func (lc *LMController) GenerateSentences(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}

	result, err := lc.lmService.Generate(c.Request.Context(), c.Param("name"), req.Count, req.Seed)
	if err != nil {
		lc.respondError(c, "Failed to generate sentences", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
