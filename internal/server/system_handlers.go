package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bodhini-dev/mediadmin/internal/models"
	"github.com/bodhini-dev/mediadmin/internal/storage"
	"github.com/bodhini-dev/mediadmin/internal/sysinfo"
)

// SystemInfoResponse contains host metrics and library totals
type SystemInfoResponse struct {
	Version        string          `json:"version"`
	StorageBackend string          `json:"storage_backend"`
	AsyncPurge     bool            `json:"async_purge"`
	Host           sysinfo.Metrics `json:"host"`
	Library        LibrarySummary  `json:"library"`
}

// LibrarySummary totals the stored media
type LibrarySummary struct {
	Items      int64              `json:"items"`
	TotalBytes int64              `json:"total_bytes"`
	ByType     []models.TypeStats `json:"by_type"`
}

// @Summary Get system information
// @Description Returns host metrics (CPU, memory, media disk) and library totals (staff only)
// @Tags system
// @Produce json
// @Success 200 {object} SystemInfoResponse
// @Failure 500 {object} map[string]interface{}
// @Router /api/system/info/ [get]
func (s *Server) getSystemInfo(c *gin.Context) {
	// Disk figures only make sense when files live on this host
	diskPath := ""
	if local, ok := s.store.(*storage.Local); ok {
		diskPath = local.Root()
	}

	host, err := sysinfo.GetMetrics(c.Request.Context(), diskPath)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to collect host metrics")
	}

	stats, err := models.LibraryStats(s.db)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to collect library stats")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to collect library stats"})
		return
	}

	library := LibrarySummary{ByType: make([]models.TypeStats, 0, len(stats))}
	for _, st := range stats {
		library.Items += st.Count
		library.TotalBytes += st.TotalBytes
		library.ByType = append(library.ByType, st)
	}

	c.JSON(http.StatusOK, SystemInfoResponse{
		Version:        s.version,
		StorageBackend: s.config.Storage.Backend,
		AsyncPurge:     s.asynqClient != nil,
		Host:           host,
		Library:        library,
	})
}
