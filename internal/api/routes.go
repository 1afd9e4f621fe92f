package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mfgsight/mfgsight-ai-go/internal/database"
	"github.com/mfgsight/mfgsight-ai-go/internal/middleware"
	"github.com/mfgsight/mfgsight-ai-go/internal/models"
	"github.com/mfgsight/mfgsight-ai-go/internal/services"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// Dependencies carries the services the HTTP layer exposes.
type Dependencies struct {
	DB         *database.PostgresDB
	Redis      *database.RedisClient
	Forecaster *services.Forecaster
	Registry   *services.ModelRegistry
	Ensemble   *services.EnsemblePredictor
	Retrain    *services.RetrainController
	Comparator *services.VersionComparator
}

func SetupRoutes(router *gin.Engine, deps *Dependencies) {
	router.Use(middleware.TelemetryMiddleware())
	router.GET("/health", healthCheck(deps.DB, deps.Redis))

	v1 := router.Group("/api/v1")
	{
		forecast := v1.Group("/forecast")
		{
			forecast.GET("/summary", getForecastSummary(deps.Forecaster))
			forecast.GET("/:metric/:entity", getMetricForecast(deps.Forecaster))
		}

		mlmodels := v1.Group("/models")
		{
			mlmodels.GET("/", listModels(deps.Registry))
			mlmodels.POST("/train", trainModel(deps.Registry))
			mlmodels.GET("/recommend", recommendFramework)
			mlmodels.GET("/compare", compareModels(deps.Registry))
			mlmodels.GET("/best", getBestModel(deps.Registry))
			mlmodels.GET("/accuracy", getAccuracySummary(deps.Registry, deps.Comparator))
			mlmodels.POST("/predict/ensemble", predictEnsemble(deps.Ensemble))
			mlmodels.GET("/:id", getModel(deps.Registry))
			mlmodels.DELETE("/:id", deleteModel(deps.Registry))
			mlmodels.POST("/:id/predict", predictModel(deps.Registry))
			mlmodels.GET("/:id/versions", compareVersions(deps.Comparator))
			mlmodels.GET("/:id/versions/trend", getVersionTrend(deps.Comparator))
		}

		retrain := v1.Group("/retrain")
		{
			retrain.GET("/jobs", getActiveRetrainJobs(deps.Retrain))
			retrain.GET("/:id/check", checkRetrain(deps.Retrain))
			retrain.POST("/:id", triggerRetrain(deps.Retrain))
			retrain.GET("/:id/history", getRetrainHistory(deps.Retrain))
			retrain.GET("/:id/config", getRetrainConfig(deps.Retrain))
			retrain.PUT("/:id/config", setRetrainConfig(deps.Retrain))
		}
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Services: Services{
				Database: "ok",
				Redis:    "ok",
			},
		}

		if err := db.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Database = "error"
			response.Status = "degraded"
		}

		if err := redis.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Redis = "error"
			response.Status = "degraded"
		}

		statusCode := http.StatusOK
		if response.Status == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}

func getForecastSummary(forecaster *services.Forecaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := forecaster.PredictionSummary(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func getMetricForecast(forecaster *services.Forecaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		metric := models.MetricKind(c.Param("metric"))
		if metric != models.MetricCpk && metric != models.MetricOee {
			c.JSON(http.StatusBadRequest, gin.H{"error": "metric must be cpk or oee"})
			return
		}

		horizon := 7
		if raw := c.Query("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
				return
			}
			horizon = parsed
		}

		predict := forecaster.PredictMetricTrend
		if c.Query("refresh") == "true" {
			predict = forecaster.RefreshMetricTrend
		}

		forecast, err := predict(c.Request.Context(), metric, c.Param("entity"), horizon)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, forecast)
	}
}

type trainRequest struct {
	ModelID  string             `json:"model_id" binding:"required"`
	Config   models.ModelConfig `json:"config" binding:"required"`
	Features [][]float64        `json:"features" binding:"required"`
	Labels   []float64          `json:"labels" binding:"required"`
}

func trainModel(registry *services.ModelRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req trainRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}

		result, err := registry.Train(c.Request.Context(), req.ModelID, req.Config, req.Features, req.Labels)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type predictRequest struct {
	Features [][]float64 `json:"features" binding:"required"`
}

func predictModel(registry *services.ModelRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req predictRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}

		output, err := registry.Predict(c.Request.Context(), c.Param("id"), req.Features)
		if err != nil {
			respondError(c, statusForModelError(err), err)
			return
		}
		c.JSON(http.StatusOK, output)
	}
}

type ensembleRequest struct {
	ModelIDs []string              `json:"model_ids" binding:"required"`
	Features [][]float64           `json:"features" binding:"required"`
	Method   models.EnsembleMethod `json:"method"`
}

func predictEnsemble(ensemble *services.EnsemblePredictor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ensembleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		if req.Method == "" {
			req.Method = models.EnsembleAverage
		}

		prediction, err := ensemble.Predict(c.Request.Context(), req.ModelIDs, req.Features, req.Method)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, models.ErrAllModelsFailed) {
				status = http.StatusUnprocessableEntity
			}
			respondError(c, status, err)
			return
		}
		c.JSON(http.StatusOK, prediction)
	}
}

func listModels(registry *services.ModelRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"models": registry.GetAllModels()})
	}
}

func getModel(registry *services.ModelRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, err := registry.GetModelInfo(c.Param("id"))
		if err != nil {
			respondError(c, statusForModelError(err), err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

func deleteModel(registry *services.ModelRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := registry.DeleteModel(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, statusForModelError(err), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
	}
}

func compareModels(registry *services.ModelRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids := c.QueryArray("id")
		if len(ids) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "at least one id query parameter is required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"comparisons": registry.CompareModels(ids)})
	}
}

func getBestModel(registry *services.ModelRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		modelID, err := registry.GetBestModel(c.Query("type"))
		if err != nil {
			respondError(c, statusForModelError(err), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"model_id": modelID})
	}
}

func recommendFramework(c *gin.Context) {
	dataSize, err := strconv.Atoi(c.DefaultQuery("data_size", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data_size must be an integer"})
		return
	}
	featureCount, err := strconv.Atoi(c.DefaultQuery("feature_count", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "feature_count must be an integer"})
		return
	}
	c.JSON(http.StatusOK, services.RecommendFramework(dataSize, featureCount, c.Query("task_type")))
}

func compareVersions(comparator *services.VersionComparator) gin.HandlerFunc {
	return func(c *gin.Context) {
		dr, err := parseDateRange(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}

		comparison, err := comparator.CompareModelVersions(c.Request.Context(), c.Param("id"), dr)
		if err != nil {
			respondError(c, statusForModelError(err), err)
			return
		}
		c.JSON(http.StatusOK, comparison)
	}
}

func getVersionTrend(comparator *services.VersionComparator) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}

		trend, err := comparator.GetVersionAccuracyTrend(c.Request.Context(), c.Param("id"), limit)
		if err != nil {
			respondError(c, statusForModelError(err), err)
			return
		}
		c.JSON(http.StatusOK, trend)
	}
}

func getAccuracySummary(registry *services.ModelRegistry, comparator *services.VersionComparator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids := c.QueryArray("id")
		if len(ids) == 0 {
			for _, entry := range registry.GetAllModels() {
				ids = append(ids, entry.ModelID)
			}
		}

		summaries, err := comparator.GetAllModelsAccuracySummary(c.Request.Context(), ids)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"summaries": summaries})
	}
}

func checkRetrain(controller *services.RetrainController) gin.HandlerFunc {
	return func(c *gin.Context) {
		check, err := controller.CheckRetrainNeeded(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, statusForModelError(err), err)
			return
		}
		c.JSON(http.StatusOK, check)
	}
}

func triggerRetrain(controller *services.RetrainController) gin.HandlerFunc {
	return func(c *gin.Context) {
		reason := models.RetrainReason{
			Code:    models.ReasonManual,
			Message: "manually triggered via API",
		}

		result, err := controller.ExecuteRetrain(c.Request.Context(), c.Param("id"), reason)
		if err != nil {
			respondError(c, statusForModelError(err), err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getRetrainHistory(controller *services.RetrainController) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}

		jobs, err := controller.History(c.Request.Context(), c.Param("id"), limit)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"jobs": jobs})
	}
}

func getActiveRetrainJobs(controller *services.RetrainController) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobs, err := controller.ActiveJobs(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"jobs": jobs})
	}
}

func getRetrainConfig(controller *services.RetrainController) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := controller.GetConfig(c.Param("id"))
		if err != nil {
			respondError(c, statusForModelError(err), err)
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

func setRetrainConfig(controller *services.RetrainController) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cfg models.RetrainConfig
		if err := c.ShouldBindJSON(&cfg); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		cfg.ModelID = c.Param("id")
		controller.SetConfig(&cfg)
		c.JSON(http.StatusOK, &cfg)
	}
}

func parseDateRange(c *gin.Context) (*models.DateRange, error) {
	startRaw := c.Query("start")
	endRaw := c.Query("end")
	if startRaw == "" && endRaw == "" {
		return nil, nil
	}

	dr := &models.DateRange{}
	if startRaw != "" {
		start, err := time.Parse(time.RFC3339, startRaw)
		if err != nil {
			return nil, errors.New("start must be RFC3339")
		}
		dr.Start = &start
	}
	if endRaw != "" {
		end, err := time.Parse(time.RFC3339, endRaw)
		if err != nil {
			return nil, errors.New("end must be RFC3339")
		}
		dr.End = &end
	}
	return dr, nil
}

// respondError records the failure on the request span before writing the
// JSON error body.
func respondError(c *gin.Context, status int, err error) {
	middleware.RecordError(c, err, http.StatusText(status))
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusForModelError(err error) int {
	if errors.Is(err, models.ErrModelNotFound) {
		return http.StatusNotFound
	}
	return http.StatusUnprocessableEntity
}
