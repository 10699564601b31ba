package clickhouse

const (
	// TableJobLogs is the name of the job logs archive table.
	TableJobLogs = "job_logs"
)
