// Package rest_api contains helper functions for quickly and easily setting up
// a diagnostics REST API over a running Engine: record browsing, metrics,
// on-demand cleanup and export. Authentication is the host application's
// responsibility; mount this behind your own middleware when exposing it.
package rest_api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"     // swagger embed files
	ginSwagger "github.com/swaggo/gin-swagger" // gin-swagger middleware

	"github.com/sharedcode/strata/engine"
)

// Main creates the HTTP router, uses the registered (REST) methods to make
// endpoint handlers out of them, sets up the swagger endpoint for doc'n and
// issues a "router run" blocking until the HTTP REST Api is signaled to stop,
// via OS interrups like CTRL-C and such.
func Main(e *engine.Engine, address string) error {
	router := gin.Default()

	api := NewRecordsRestApi(e)
	RegisterMethod(GET, "/records", api.GetRecords)
	RegisterMethod(GET_ONE, "/records/:namespace/:key", api.GetRecord)
	RegisterMethod(POST, "/records", api.SaveRecord)
	RegisterMethod(GET, "/metrics/migration", api.GetMigrationMetrics)
	RegisterMethod(GET, "/metrics/cleanup", api.GetCleanupMetrics)
	RegisterMethod(POST, "/cleanup", api.PerformCleanup)
	RegisterMethod(GET, "/export", api.ExportAll)

	v1 := router.Group("/api/v1")
	{
		restMethods := RestMethods()
		for _, rm := range restMethods {
			switch rm.Verb {
			case GET:
				fallthrough
			case GET_ONE:
				v1.GET(rm.Path, rm.Handler)
			case DELETE:
				v1.DELETE(rm.Path, rm.Handler)
			case POST:
				v1.POST(rm.Path, rm.Handler)
			case PUT:
				v1.PUT(rm.Path, rm.Handler)
			case PATCH:
				v1.PATCH(rm.Path, rm.Handler)
			default:
				panic(fmt.Sprintf("HTTP verb %d not supported", rm.Verb))
			}
		}
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
	return router.Run(address)
}
