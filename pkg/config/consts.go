package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "BOOKSTORE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "BOOKSTORE_APP_ENV"
	EnvDBDSN  = "BOOKSTORE_DB_DSN"
	EnvDBHost = "BOOKSTORE_DB_HOST"
	EnvDBUser = "BOOKSTORE_DB_USER"
	EnvDBName = "BOOKSTORE_DB_NAME"
)

var componentDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
