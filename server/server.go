// Package server exposes a Predictor over HTTP.
//
//	POST /v1/predict        {"id": "u1", "text": "..."}      -> {"id": "u1", "entities": [...]}
//	POST /v1/predict/batch  {"records": [{"id", "text"}]}     -> {"u1": [...], ...}
//	GET  /healthz                                             -> {"status": "ok"}
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/piitag/piitag/align"
	"github.com/piitag/piitag/dataset"
	"github.com/piitag/piitag/predict"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultMaxBatch is the maximum number of records accepted by a batch request.
const DefaultMaxBatch = 256

// Predictor is implemented by predict.Predictor.
type Predictor interface {
	PredictText(ctx context.Context, text string) ([]align.Span, error)
	PredictRecords(ctx context.Context, records []dataset.Record) (predict.Predictions, error)
}

// API holds the handlers.
type API struct {
	predictor Predictor
	maxBatch  int
}

// NewAPI creates the handlers. A maxBatch <= 0 uses DefaultMaxBatch.
func NewAPI(predictor Predictor, maxBatch int) *API {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &API{predictor: predictor, maxBatch: maxBatch}
}

// SetupRoutes registers the routes of the API on router.
func SetupRoutes(router *gin.Engine, api *API) {
	router.GET("/healthz", api.HealthHandler)
	v1 := router.Group("/v1")
	{
		v1.POST("/predict", api.PredictHandler)
		v1.POST("/predict/batch", api.PredictBatchHandler)
	}
}

// NewRouter returns a gin engine with recovery, request logging to klog and the API routes.
func NewRouter(api *API) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	SetupRoutes(router, api)
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		klog.V(1).Infof("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// PredictRequest is the body of POST /v1/predict. A missing id is replaced by a UUID.
type PredictRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// PredictResponse is the response of POST /v1/predict.
type PredictResponse struct {
	ID       string       `json:"id"`
	Entities []align.Span `json:"entities"`
}

// BatchRequest is the body of POST /v1/predict/batch.
type BatchRequest struct {
	Records []PredictRequest `json:"records"`
}

// HealthHandler reports the server is up.
func (api *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PredictHandler predicts the spans of one text.
func (api *API) PredictHandler(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendInvalidJSON(c, err)
		return
	}
	if req.Text == "" {
		sendValidationError(c, "text is required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	spans, err := api.predictor.PredictText(c.Request.Context(), req.Text)
	if err != nil {
		sendPredictionError(c, err)
		return
	}
	if spans == nil {
		spans = []align.Span{}
	}
	c.JSON(http.StatusOK, &PredictResponse{ID: req.ID, Entities: spans})
}

// PredictBatchHandler predicts the spans of several texts, returned keyed by id.
func (api *API) PredictBatchHandler(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendInvalidJSON(c, err)
		return
	}
	if len(req.Records) == 0 {
		sendValidationError(c, "records is required")
		return
	}
	if len(req.Records) > api.maxBatch {
		sendValidationError(c, "too many records")
		return
	}
	records := make([]dataset.Record, len(req.Records))
	for ii, r := range req.Records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		records[ii] = dataset.Record{ID: r.ID, Text: r.Text}
	}
	preds, err := api.predictor.PredictRecords(c.Request.Context(), records)
	if err != nil {
		sendPredictionError(c, err)
		return
	}
	for id, spans := range preds {
		if spans == nil {
			preds[id] = []align.Span{}
		}
	}
	c.JSON(http.StatusOK, preds)
}

// Serve serves handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		klog.Infof("serving predictions on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return errors.Wrapf(err, "server on %s failed", addr)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down server")
	}
	klog.Infof("server on %s stopped", addr)
	return nil
}
