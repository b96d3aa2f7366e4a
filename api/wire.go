package api

import (
	"github.com/taole4114/2.-Script-YTB/api/handlers/credentials"
	"github.com/taole4114/2.-Script-YTB/api/handlers/models"
	"github.com/taole4114/2.-Script-YTB/api/handlers/scripts"
)

// Handlers 所有 HTTP Handler
type Handlers struct {
	Credentials *credentials.Handler
	Models      *models.Handler
	Scripts     *scripts.Handler
}

// NewHandlers 由容器创建 Handler
func NewHandlers(c *AppContainer) *Handlers {
	return &Handlers{
		Credentials: credentials.NewHandler(c.Credentials),
		Models:      models.NewHandler(c.Registry),
		Scripts:     scripts.NewHandler(c.Scripts, c.Jobs),
	}
}
