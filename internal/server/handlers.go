package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Aidin1998/riskfolio/internal/simulation"
	"github.com/Aidin1998/riskfolio/internal/simulation/analysis"
	"github.com/Aidin1998/riskfolio/internal/service"
	"github.com/Aidin1998/riskfolio/pkg/errors"
	"github.com/Aidin1998/riskfolio/pkg/models"
)

// statusFor maps error kinds to HTTP statuses: input problems are 4xx,
// strict-mode non-convergence is a conflict the caller must resolve, and
// computation failures are server-side.
func statusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindValidation, errors.KindCorrelation:
		return http.StatusBadRequest
	case errors.KindConvergence:
		return http.StatusConflict
	case errors.KindComputation:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	var tagged *errors.Error
	if errors.As(err, &tagged) {
		c.JSON(statusFor(err), gin.H{"error": tagged})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error()}})
}

// runSimulation executes a simulation. Query params: async=true queues the
// run and returns 202 with its id; strict=true fails on non-convergence.
func (s *Server) runSimulation(c *gin.Context) {
	var req simulation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "malformed request body"}})
		return
	}

	if c.Query("async") == "true" {
		run, err := s.svc.Submit(&req)
		if err != nil {
			s.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"simulation_id": run.ID, "status": run.Status()})
		return
	}

	var (
		results *models.SimulationResults
		err     error
	)
	if c.Query("strict") == "true" {
		results, err = s.svc.RunStrict(c.Request.Context(), &req)
	} else {
		results, err = s.svc.RunSync(c.Request.Context(), &req)
	}
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// validateParameters runs the iteration-free pre-check.
func (s *Server) validateParameters(c *gin.Context) {
	var req simulation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "malformed request body"}})
		return
	}
	result := s.svc.ValidateParameters(&req)
	c.JSON(http.StatusOK, gin.H{
		"validation":          result,
		"estimated_seconds":   decimal.NewFromFloat(result.EstimatedDuration.Seconds()).Round(3),
		"estimated_duration":  result.EstimatedDuration.String(),
	})
}

func (s *Server) getSimulation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "invalid simulation id"}})
		return
	}
	run, ok := s.svc.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "unknown simulation id"}})
		return
	}
	payload := gin.H{"simulation_id": run.ID, "status": run.Status()}
	if results := run.Results(); results != nil {
		payload["results"] = results
	}
	if err := run.Err(); err != nil {
		payload["error"] = err.Error()
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) cancelSimulation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "invalid simulation id"}})
		return
	}
	if !s.svc.Cancel(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "unknown simulation id"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"simulation_id": id, "status": service.StatusCancelled})
}

// analyzeSimulation serves the analyzer output for a completed run: the
// distribution/tornado/CDF data the chart collaborator consumes.
func (s *Server) analyzeSimulation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "invalid simulation id"}})
		return
	}
	run, ok := s.svc.Get(id)
	if !ok || run.Results() == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "no completed results for this id"}})
		return
	}
	results := run.Results()

	axis := models.ImpactType(c.DefaultQuery("axis", string(models.ImpactCost)))
	percentiles, err := analysis.Percentiles(results, axis, []float64{10, 50, 90})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	intervals, err := analysis.ConfidenceIntervals(results, axis, []float64{0.90, 0.95})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	contributors, err := analysis.TopRiskContributors(results, run.Request.Risks, 10)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	cdf, err := analysis.CDF(results, axis, 200)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"percentiles":          percentiles,
		"confidence_intervals": intervals,
		"top_contributors":     contributors,
		"cdf":                  cdf,
		"convergence":          results.Convergence,
	})
}

type createScenarioRequest struct {
	Name          string                             `json:"name"`
	Description   string                             `json:"description"`
	BaseRisks     []models.Risk                      `json:"base_risks"`
	Modifications map[string]models.RiskModification `json:"modifications"`
}

func (s *Server) createScenario(c *gin.Context) {
	var req createScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "malformed request body"}})
		return
	}
	sc, err := s.svc.CreateScenario(req.Name, req.Description, req.BaseRisks, req.Modifications)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sc)
}

type simulateScenarioRequest struct {
	Iterations int    `json:"iterations"`
	Seed       *int64 `json:"seed,omitempty"`
}

func (s *Server) simulateScenario(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "invalid scenario id"}})
		return
	}
	var req simulateScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "malformed request body"}})
		return
	}
	results, err := s.svc.SimulateScenario(c.Request.Context(), id, req.Iterations, req.Seed)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

type compareScenariosRequest struct {
	ScenarioA uuid.UUID         `json:"scenario_a"`
	ScenarioB uuid.UUID         `json:"scenario_b"`
	Axis      models.ImpactType `json:"axis"`
}

func (s *Server) compareScenarios(c *gin.Context) {
	var req compareScenariosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "malformed request body"}})
		return
	}
	a, okA := s.svc.GetScenario(req.ScenarioA)
	b, okB := s.svc.GetScenario(req.ScenarioB)
	if !okA || !okB {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "unknown scenario id"}})
		return
	}
	if a.Results == nil || b.Results == nil {
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{"message": "both scenarios must be simulated before comparison"}})
		return
	}
	axis := req.Axis
	if axis == "" {
		axis = models.ImpactCost
	}
	cmp, err := analysis.CompareScenarios(a.Results, b.Results, axis)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cmp)
}

func (s *Server) listHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "run history is not enabled"}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("history query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "history query failed"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": records})
}
