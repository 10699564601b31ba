package postgres

const (
	// TableProvisioningJobs is the name of the provisioning jobs journal table.
	TableProvisioningJobs = "provisioning_jobs"
)
