package database_size

import (
	"fmt"

	"github.com/trufnetwork/kwil-db/extensions/precompiles"
)

// InitializeExtension registers the initializer. The precompile itself is
// instantiated when a schema executes USE database_size.
func InitializeExtension() {
	if err := precompiles.RegisterInitializer(ExtensionName, initialize); err != nil {
		panic(fmt.Sprintf("register %s initializer: %v", ExtensionName, err))
	}
}
