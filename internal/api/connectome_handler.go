package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"popconn/adapters/stats/metrics"
	"popconn/app"
	"popconn/domain/connectome"
	"popconn/domain/core"
	"popconn/internal"
	"popconn/internal/errors"
)

// ConnectomeHandler handles connectome and group comparison requests
type ConnectomeHandler struct {
	service *app.ConnectomeService
	logger  *internal.Logger
}

// NewConnectomeHandler creates a new connectome handler
func NewConnectomeHandler(service *app.ConnectomeService, logger *internal.Logger) *ConnectomeHandler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ConnectomeHandler{
		service: service,
		logger:  logger.With("api"),
	}
}

// TablePayload carries a table inline
type TablePayload struct {
	Columns []string            `json:"columns"`
	Records []connectome.Record `json:"records" binding:"required"`
}

func (p TablePayload) table() connectome.Table {
	return connectome.NewTable(p.Columns, p.Records)
}

// ConnectomeRequest is the body of POST /connectome
type ConnectomeRequest struct {
	Table  TablePayload      `json:"table"`
	Layout connectome.Layout `json:"layout"`
	Method string            `json:"method"`
}

// CompareRequest is the body of POST /compare
type CompareRequest struct {
	Table              TablePayload      `json:"table"`
	Layout             connectome.Layout `json:"layout"`
	Method             string            `json:"method"`
	Metric             string            `json:"metric"`
	NumPermutations    int               `json:"n_permutations"`
	Seed               *uint64           `json:"seed"`
	ReturnDistribution bool              `json:"return_distribution"`
	KeepLabels         bool              `json:"keep_labels"`
}

// ErrorBody describes a failed request, naming the offending identifiers
// when the failure carries them
type ErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Subject string   `json:"subject,omitempty"`
	Region  string   `json:"region,omitempty"`
	Column  string   `json:"column,omitempty"`
	Regions []string `json:"regions,omitempty"`
}

// BuildConnectome estimates one connectome over every subject in the table
func (h *ConnectomeHandler) BuildConnectome(c *gin.Context) {
	var req ConnectomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errors.InvalidInput("invalid request body: "+err.Error()))
		return
	}

	matrix, err := h.service.BuildConnectome(c.Request.Context(), app.BuildRequest{
		Table:  req.Table.table(),
		Layout: req.Layout,
		Method: connectome.Method(req.Method),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, matrix)
}

// CompareGroups runs a two-group permutation test
func (h *ConnectomeHandler) CompareGroups(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errors.InvalidInput("invalid request body: "+err.Error()))
		return
	}

	result, err := h.service.CompareGroups(c.Request.Context(), app.CompareRequest{
		Table:              req.Table.table(),
		Layout:             req.Layout,
		Method:             connectome.Method(req.Method),
		Metric:             req.Metric,
		NumPermutations:    req.NumPermutations,
		Seed:               req.Seed,
		ReturnDistribution: req.ReturnDistribution,
		KeepLabels:         req.KeepLabels,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListMetrics returns the metric catalog
func (h *ConnectomeHandler) ListMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default": metrics.Default,
		"metrics": metrics.Describe(),
	})
}

func (h *ConnectomeHandler) fail(c *gin.Context, err error) {
	appErr := errors.FromDomain(err)
	status := errors.HTTPStatus(appErr.Code)

	body := ErrorBody{Code: appErr.Code, Message: appErr.Error()}
	if de, ok := core.AsDataError(err); ok {
		body.Subject = de.Subject
		body.Region = de.Region
		body.Column = de.Column
		body.Regions = de.Regions
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	} else {
		h.logger.Debug("%s %s rejected: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": body})
}
