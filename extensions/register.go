package extensions

import (
	database_size "github.com/ssonetwork/node/extensions/database-size"
	"github.com/ssonetwork/node/extensions/sso_signal"
)

func init() {
	sso_signal.InitializeExtension()
	database_size.InitializeExtension()
}
