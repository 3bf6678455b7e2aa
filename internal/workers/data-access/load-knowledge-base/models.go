// internal/workers/data-access/load-knowledge-base/models.go
package loadknowledgebase

import (
	"database/sql"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
)

// Backends holds the clients a source may need. Only the one matching the
// configured source has to be set.
type Backends struct {
	Redis         redis.Cmdable
	Postgres      *sql.DB
	Elasticsearch *elasticsearch.Client
}
