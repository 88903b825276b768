package exitcode

const (
	Success      = 0
	UsageError   = 1
	DBConnError  = 2
	MigrateError = 3
	ServerError  = 4
)
