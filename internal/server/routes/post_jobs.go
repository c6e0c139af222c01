package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kgops/internal/queue"
	"github.com/OFFIS-RIT/kgops/internal/server/middleware"
	"github.com/OFFIS-RIT/kgops/pkg/logger"

	"github.com/labstack/echo/v4"
)

type enqueueResponse struct {
	Message       string `json:"message"`
	Queue         string `json:"queue,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func enqueue(c echo.Context, queueName, userID string) error {
	cc := c.(*middleware.AppContext)
	sent, err := queue.Enqueue(cc.App.Queue, queueName, queue.JobMsg{
		UserID:      userID,
		RequestedBy: cc.User.UserID,
	})
	if err != nil {
		logger.Error("Failed to enqueue job", "queue", queueName, "user_id", userID, "err", err)
		return c.JSON(http.StatusInternalServerError, enqueueResponse{Message: "Failed to enqueue job"})
	}
	return c.JSON(http.StatusAccepted, enqueueResponse{
		Message:       "Job queued",
		Queue:         queueName,
		CorrelationID: sent.CorrelationID,
	})
}

// MigrateAllHandler queues a migration of every user's pending documents.
func MigrateAllHandler(c echo.Context) error {
	return enqueue(c, queue.MigrateQueue, "")
}

func MigrateUserHandler(c echo.Context) error {
	return enqueue(c, queue.MigrateQueue, c.Param("userId"))
}

func RebuildUserHandler(c echo.Context) error {
	return enqueue(c, queue.RebuildQueue, c.Param("userId"))
}

func PipelineUserHandler(c echo.Context) error {
	return enqueue(c, queue.TrainingQueue, c.Param("userId"))
}
