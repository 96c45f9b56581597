package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// TransactionAttributes tags the New Relic transaction started by nrgin with
// the caller's role and the trip being acted on. It is a no-op when no
// transaction is present.
func TransactionAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if id := Identity(c); id != nil {
			txn.AddAttribute("role", string(id.Role))
			txn.AddAttribute("account_id", id.ID)
		} else {
			txn.AddAttribute("role", "anonymous")
		}

		if tripID := c.Param("id"); tripID != "" {
			txn.AddAttribute("entity_id", tripID)
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
