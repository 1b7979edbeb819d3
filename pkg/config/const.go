package config

const (
	EnvPrefix = "RIDELINK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "RIDELINK_DB_DSN"
	EnvDBHost = "RIDELINK_DB_HOST"
	EnvDBUser = "RIDELINK_DB_USER"
	EnvDBName = "RIDELINK_DB_NAME"

	EnvPlatformAccountID = "RIDELINK_PLATFORM_ACCOUNT_ID"
	EnvDriverShareBps    = "RIDELINK_DRIVER_SHARE_BPS"
	EnvMinimumFareCents  = "RIDELINK_MINIMUM_FARE_CENTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
