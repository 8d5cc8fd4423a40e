package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/audit_backend/config"
	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/models/reports"
	"github.com/mmdatafocus/audit_backend/sampling"
	"github.com/mmdatafocus/audit_backend/utils"
	"github.com/mmdatafocus/audit_backend/workflow"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	exportObjectHeader = "X-Export-Object"
	rejectedRowsHeader = "X-Rejected-Rows"
)

type analysisRequest struct {
	ClientId     string                  `json:"client_id"`
	DataVersion  string                  `json:"data_version"`
	Transactions []models.RawTransaction `json:"transactions"`
	AccountAreas models.AccountAreaMap   `json:"account_areas"`
}

type samplingRequest struct {
	Transactions []models.RawTransaction   `json:"transactions"`
	Parameters   models.SamplingParameters `json:"parameters"`
}

type reportRequest struct {
	Analysis   *models.AggregatedAnalysis `json:"analysis"`
	TemplateId models.TemplateId          `json:"template_id"`
}

// PubSubMessage is the push envelope delivered by the subscription.
type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// analysisRequestMessage asks for a stored client population to be analyzed.
type analysisRequestMessage struct {
	ClientId      string `json:"client_id"`
	DataVersion   string `json:"data_version"`
	CorrelationId string `json:"correlation_id"`
}

var badRequestErrors = []error{
	workflow.ErrClientIdRequired,
	sampling.ErrUnknownSamplingMethod,
	sampling.ErrInvalidParameters,
	reports.ErrUnknownTemplate,
	reports.ErrNilAnalysis,
}

func errorStatus(err error) int {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	if errors.Is(err, utils.ErrorAnalysisLocked) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (a *api) analyzeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req analysisRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}
		txns, rejected := models.ToTransactions(req.Transactions, a.loc)

		ctx, span := tracer.Start(c.Request.Context(), "http.analyze", trace.WithAttributes(
			attribute.String("client_id", req.ClientId),
			attribute.Int("transactions", len(txns)),
		))
		defer span.End()
		ctx = utils.SetClientIdInContext(ctx, req.ClientId)

		ref := models.PopulationRef{ClientId: strings.TrimSpace(req.ClientId), DataVersion: req.DataVersion}
		result := a.analyzer.AnalyzePopulation(ctx, ref, txns, req.AccountAreas)
		a.analyzer.AttachRejectedRows(result, rejected)
		c.JSON(http.StatusOK, result)
	}
}

func (a *api) clientAnalysisHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := a.service.RunClientAnalysis(c.Request.Context(), c.Param("clientId"), c.Query("data_version"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (a *api) invalidateAnalysisHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.service.InvalidateAnalysis(c.Request.Context(), c.Param("clientId"), c.Query("data_version")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (a *api) samplingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req samplingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}
		txns, rejected := models.ToTransactions(req.Transactions, a.loc)
		for _, r := range rejected {
			config.LogError(a.logger, "server", "samplingHandler", "skip malformed row", nil, r)
		}
		c.Header(rejectedRowsHeader, strconv.Itoa(len(rejected)))
		result, err := a.sampler.DrawSample(txns, req.Parameters)
		if err != nil {
			respondError(c, err)
			return
		}
		if result == nil {
			c.JSON(http.StatusOK, gin.H{"sample": nil, "message": "population is empty"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (r reportRequest) template() models.TemplateId {
	if r.TemplateId == "" {
		return models.TemplateComprehensive
	}
	return r.TemplateId
}

func (a *api) reportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}
		report, err := reports.GenerateCached(c.Request.Context(), req.Analysis, req.template())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// exportHandler returns the report as an xlsx download. With ?upload=true the
// workbook is also stored in the export bucket and its object name returned in a header.
func (a *api) exportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}
		report, err := reports.GenerateCached(c.Request.Context(), req.Analysis, req.template())
		if err != nil {
			respondError(c, err)
			return
		}
		data, err := reports.Export(report)
		if err != nil {
			respondError(c, err)
			return
		}

		if strings.EqualFold(c.Query("upload"), "true") {
			name, err := a.upload(c.Request.Context(), report, data)
			if err != nil {
				respondError(c, fmt.Errorf("upload export: %w", err))
				return
			}
			c.Header(exportObjectHeader, name)
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Id+".xlsx"))
		c.Data(http.StatusOK, reports.XlsxContentType, data)
	}
}

func (a *api) templatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		out := make([]models.ReportTemplate, 0, len(reports.TemplateIds()))
		for _, id := range reports.TemplateIds() {
			t, _ := reports.Template(id)
			out = append(out, t)
		}
		c.JSON(http.StatusOK, out)
	}
}

// analysisPubSubHandler runs a client analysis per pushed message. Malformed
// messages are acked so they are not redelivered; failures return 500 to trigger a retry.
func (a *api) analysisPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := a.logger

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server", "analysisPubSubHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}
		var msg PubSubMessage
		if err := utils.UnmarshalFromJSON(body, &msg); err != nil {
			config.LogError(logger, "server", "analysisPubSubHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}
		var m analysisRequestMessage
		if err := utils.UnmarshalFromJSON(msg.Message.Data, &m); err != nil {
			config.LogError(logger, "server", "analysisPubSubHandler", "Unmarshal pubsub message", string(msg.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}
		if strings.TrimSpace(m.ClientId) == "" {
			config.LogError(logger, "server", "analysisPubSubHandler", "Invalid pubsub message", m, workflow.ErrClientIdRequired)
			c.Status(http.StatusNoContent)
			return
		}

		correlationId := m.CorrelationId
		if correlationId == "" {
			correlationId = msg.Message.ID
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationId)

		fields := logrus.Fields{
			"client_id":      m.ClientId,
			"data_version":   m.DataVersion,
			"message_id":     msg.Message.ID,
			"correlation_id": correlationId,
		}
		if _, err := a.service.RunClientAnalysis(ctx, m.ClientId, m.DataVersion); err != nil {
			if errors.Is(err, utils.ErrorAnalysisLocked) {
				logger.WithFields(fields).Warn("analysis already running; dropping message")
				c.Status(http.StatusNoContent)
				return
			}
			logger.WithFields(fields).Error("pubsub analysis failed: " + err.Error())
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
