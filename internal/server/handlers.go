package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"storyreel/internal/preflight"
	"storyreel/internal/renderjob"
	"storyreel/internal/timing"
)

type preflightResponse struct {
	ProjectID string              `json:"project_id"`
	CanBuild  bool                `json:"can_build"`
	TotalMS   int64               `json:"total_duration_ms"`
	Scenes    []sceneTimingView   `json:"scenes"`
	Errors    []preflight.Finding `json:"errors"`
	Warnings  []preflight.Finding `json:"warnings"`
}

type sceneTimingView struct {
	Ordinal    int    `json:"ordinal"`
	StartMS    int64  `json:"start_ms"`
	DurationMS int64  `json:"duration_ms"`
	Source     string `json:"duration_source"`
}

type jobView struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id"`
	Status       string     `json:"status"`
	Attempt      int        `json:"attempt"`
	Progress     float64    `json:"progress"`
	OutputURL    string     `json:"output_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handlePreflight(c *gin.Context) {
	projectID := c.Param("id")
	checkReachability := parseBool(c.Query("check_reachability"))

	result, err := s.manager.Preflight(c.Request.Context(), projectID, checkReachability)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}

	resp := preflightResponse{
		ProjectID: projectID,
		CanBuild:  result.Report.CanBuild,
		TotalMS:   result.TotalMS,
		Errors:    emptyIfNil(result.Report.Errors),
		Warnings:  emptyIfNil(result.Report.Warnings),
		Scenes:    timingViews(result.Timings),
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleBuild(c *gin.Context) {
	job, err := s.manager.StartBuild(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toJobView(job))
}

func (s *Server) handleListJobs(c *gin.Context) {
	var statuses []renderjob.Status
	for _, raw := range c.QueryArray("status") {
		if status, ok := renderjob.ParseStatus(raw); ok {
			statuses = append(statuses, status)
		}
	}
	jobs, err := s.manager.Store().List(c.Request.Context(), statuses...)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, toJobView(job))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": views})
}

// handleJob refreshes the job from the renderer before answering, so status
// queries stay pull-based without a background dependency.
func (s *Server) handleJob(c *gin.Context) {
	job, err := s.manager.Refresh(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobView(job))
}

func (s *Server) handleCancel(c *gin.Context) {
	job, err := s.manager.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobView(job))
}

func (s *Server) handleRetry(c *gin.Context) {
	job, err := s.manager.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toJobView(job))
}

func toJobView(job *renderjob.Job) jobView {
	return jobView{
		ID:           job.ID,
		ProjectID:    job.ProjectID,
		Status:       string(job.Status),
		Attempt:      job.Attempt,
		Progress:     job.Progress,
		OutputURL:    job.OutputURL,
		ErrorMessage: job.ErrorMessage,
		NextRetryAt:  job.NextRetryAt,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

func timingViews(timings []timing.SceneTiming) []sceneTimingView {
	views := make([]sceneTimingView, 0, len(timings))
	for _, t := range timings {
		views = append(views, sceneTimingView{
			Ordinal:    t.Ordinal,
			StartMS:    t.StartMS,
			DurationMS: t.DurationMS,
			Source:     string(t.Source),
		})
	}
	return views
}

func emptyIfNil(findings []preflight.Finding) []preflight.Finding {
	if findings == nil {
		return []preflight.Finding{}
	}
	return findings
}

func parseBool(raw string) bool {
	value, err := strconv.ParseBool(raw)
	return err == nil && value
}
