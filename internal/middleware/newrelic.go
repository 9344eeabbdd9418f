package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicCallerAttributes tags the current New Relic transaction with the
// authenticated caller. Must run after nrgin.Middleware and Auth.
func NewRelicCallerAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if caller, ok := CallerFromContext(c); ok {
			txn.AddAttribute("caller.id", caller.ID)
			txn.AddAttribute("caller.role", string(caller.Role))
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
