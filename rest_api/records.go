package rest_api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/strata"
	"github.com/sharedcode/strata/engine"
)

type recordsRestApi struct {
	engine *engine.Engine
}

func NewRecordsRestApi(e *engine.Engine) *recordsRestApi {
	return &recordsRestApi{engine: e}
}

// GetRecords godoc
// @Summary GetRecords returns records within a time range
// @Schemes
// @Description GetRecords responds with the records whose timestamp falls within the from/to epoch-ms range, newest first, as JSON.
// @Tags Records
// @Accept json
// @Produce json
// @Param from query int false "range start, epoch ms"
// @Param to query int false "range end, epoch ms"
// @Param limit query int false "max records returned"
// @Success 200 {object} []strata.Record
// @Router /records [get]
func (rra *recordsRestApi) GetRecords(c *gin.Context) {
	rng := strata.TimeRange{
		FromMillis: queryInt64(c, "from"),
		ToMillis:   queryInt64(c, "to"),
	}
	limit := int(queryInt64(c, "limit"))
	recs := rra.engine.GetRecords(c.Request.Context(), rng, limit)
	c.IndentedJSON(http.StatusOK, recs)
}

// GetRecord godoc
// @Summary GetRecord returns one record by namespaced key
// @Schemes
// @Description GetRecord responds with the record stored under namespace/key, or 404 when no tier holds it.
// @Tags Records
// @Accept json
// @Produce json
// @Param namespace path string true "key namespace"
// @Param key path string true "identity key"
// @Success 200 {object} strata.Record
// @Failure 404 {object} map[string]any
// @Router /records/{namespace}/{key} [get]
func (rra *recordsRestApi) GetRecord(c *gin.Context) {
	key := strata.FormatKey(c.Param("namespace"), c.Param("key"))
	r := rra.engine.Get(c.Request.Context(), key, strata.Record{})
	if r.IdentityKey == "" {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "no record under " + key})
		return
	}
	c.IndentedJSON(http.StatusOK, r)
}

// SaveRecord godoc
// @Summary SaveRecord stores a snapshot record
// @Schemes
// @Description SaveRecord stores the posted record through the tiered write path. Malformed records are dropped; the call itself always accepts.
// @Tags Records
// @Accept json
// @Produce json
// @Param record body strata.Record true "record to store"
// @Success 202 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /records [post]
func (rra *recordsRestApi) SaveRecord(c *gin.Context) {
	var r strata.Record
	if err := c.BindJSON(&r); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "record body can't be parsed"})
		return
	}
	rra.engine.SaveRecord(c.Request.Context(), r)
	c.IndentedJSON(http.StatusAccepted, gin.H{"identity_key": r.IdentityKey})
}

// GetMigrationMetrics godoc
// @Summary GetMigrationMetrics returns cumulative migration counters
// @Schemes
// @Description GetMigrationMetrics responds with hot-to-warm and warm-to-cold totals plus recent phase errors.
// @Tags Metrics
// @Accept json
// @Produce json
// @Success 200 {object} engine.MigrationMetrics
// @Router /metrics/migration [get]
func (rra *recordsRestApi) GetMigrationMetrics(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, rra.engine.GetMigrationMetrics())
}

// GetCleanupMetrics godoc
// @Summary GetCleanupMetrics returns cumulative cleanup counters
// @Schemes
// @Description GetCleanupMetrics responds with hot and warm eviction totals plus recent phase errors.
// @Tags Metrics
// @Accept json
// @Produce json
// @Success 200 {object} engine.CleanupMetrics
// @Router /metrics/cleanup [get]
func (rra *recordsRestApi) GetCleanupMetrics(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, rra.engine.GetCleanupMetrics())
}

// PerformCleanup godoc
// @Summary PerformCleanup runs the retention passes now
// @Schemes
// @Description PerformCleanup triggers hot and warm retention enforcement outside the timer and responds with the eviction counts.
// @Tags Maintenance
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /cleanup [post]
func (rra *recordsRestApi) PerformCleanup(c *gin.Context) {
	hot, warm := rra.engine.PerformCleanup(c.Request.Context())
	c.IndentedJSON(http.StatusOK, gin.H{"hot_cleaned": hot, "warm_cleaned": warm})
}

// ExportAll godoc
// @Summary ExportAll streams every known record as a JSON array
// @Schemes
// @Description ExportAll aggregates the authoritative cold view (or the local tiers when cold is unreachable) into one JSON document.
// @Tags Maintenance
// @Accept json
// @Produce json
// @Success 200 {object} []strata.Record
// @Failure 500 {object} map[string]any
// @Router /export [get]
func (rra *recordsRestApi) ExportAll(c *gin.Context) {
	ba, err := rra.engine.ExportAll(c.Request.Context())
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": "export failed"})
		return
	}
	c.Data(http.StatusOK, "application/json", ba)
}

func queryInt64(c *gin.Context, name string) int64 {
	v := c.Query(name)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
